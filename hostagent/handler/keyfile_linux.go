// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// +build !windows

package handler

import (
	"os"
)

// protectKeyFile restricts the key file to its owner.  The agent targets Windows
// database hosts; this keeps development builds honest on other platforms.
func protectKeyFile(path string) error {
	return os.Chmod(path, 0600)
}
