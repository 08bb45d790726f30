// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// +build windows

package handler

import (
	acl "github.com/hectane/go-acl"
	log "github.com/hpe-storage/dbrefresh/logger"
	"golang.org/x/sys/windows"
)

// protectKeyFile replaces the key file's inherited ACL with one granting access to
// Administrators and SYSTEM only
func protectKeyFile(path string) error {
	log.Tracef(">>>>> protectKeyFile, path=%v", path)
	defer log.Trace("<<<<< protectKeyFile")

	return acl.Apply(
		path,
		true,  // replace existing ACL
		false, // stop inheriting ACEs
		acl.GrantName(windows.GENERIC_ALL, "Administrators"),
		acl.GrantName(windows.GENERIC_ALL, "SYSTEM"),
	)
}
