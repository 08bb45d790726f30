// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package util

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	log "github.com/hpe-storage/dbrefresh/logger"
)

const (
	// DefaultExecTimeout is the command execution timeout (in seconds) applied when the
	// caller does not provide one
	DefaultExecTimeout = 60
)

// ExecCommandOutput returns stdout and stderr in a single string, the return code, and error.
// Sensitive arguments are scrubbed before logging.
func ExecCommandOutput(cmd string, args []string) (string, int, error) {
	return ExecCommandOutputWithTimeout(cmd, args, DefaultExecTimeout)
}

// ExecCommandOutputWithTimeout executes ExecCommandOutput with the given timeout (in seconds)
func ExecCommandOutputWithTimeout(cmd string, args []string, timeout int) (string, int, error) {
	log.Tracef(">>>>> ExecCommandOutputWithTimeout, cmd=%v, args=%v, timeout=%v", cmd, log.Scrubber(args), timeout)
	defer log.Trace("<<<<< ExecCommandOutputWithTimeout")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, cmd, args...)
	var b bytes.Buffer
	c.Stdout = &b
	c.Stderr = &b

	err := c.Run()
	out := b.String()
	rc := 0

	if ctx.Err() == context.DeadlineExceeded {
		log.Errorf("command %v timed out after %v seconds", cmd, timeout)
		return out, 124, ctx.Err()
	}

	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
				rc = status.ExitStatus()
			}
		} else {
			rc = 1
		}
	}

	log.Tracef("command returned, rc=%v", rc)
	return out, rc, err
}
