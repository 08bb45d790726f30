// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package refresh

import (
	"strings"

	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const (
	errorMessageEmptyFilePath    = "database primary file path is empty"
	errorMessageRelativeFilePath = "database primary file path %v is not an absolute drive path"
	errorMessageUNCFilePath      = "database primary file path %v is a UNC path, only local drive paths are supported"
)

// driveRootForPath extracts the drive root from a database file path, e.g.
// "E:\SQL\data\app.mdf" yields "E:\".  UNC and relative paths are rejected;
// a database on a file share has no local disk to take offline.
func driveRootForPath(filePath string) (string, error) {
	if filePath == "" {
		return "", rerrors.NewRefreshError(rerrors.InvalidArgument, errorMessageEmptyFilePath)
	}
	if strings.HasPrefix(filePath, `\\`) || strings.HasPrefix(filePath, "//") {
		return "", rerrors.NewRefreshErrorf(rerrors.InvalidArgument, errorMessageUNCFilePath, filePath)
	}
	if (len(filePath) < 3) || (filePath[1] != ':') || ((filePath[2] != '\\') && (filePath[2] != '/')) {
		return "", rerrors.NewRefreshErrorf(rerrors.InvalidArgument, errorMessageRelativeFilePath, filePath)
	}
	return strings.ToUpper(filePath[0:1]) + `:\`, nil
}

// LocateDiskForDatabase resolves the host disk backing a database's primary file.
// The lookup runs on the physical host that owns the volume, so hostName must be
// the instance's physical host name, not its logical or clustered address.
func LocateDiskForDatabase(executor HostExecutor, hostName, primaryFilePath string) (*model.HostDisk, error) {
	log.Tracef(">>>>> LocateDiskForDatabase called, hostName=%v, primaryFilePath=%v", hostName, primaryFilePath)
	defer log.Trace("<<<<< LocateDiskForDatabase")

	driveRoot, err := driveRootForPath(primaryFilePath)
	if err != nil {
		return nil, err
	}
	disk, err := executor.GetDiskForPath(hostName, driveRoot)
	if err != nil {
		return nil, err
	}
	log.Infof("database file path %v on host %v is backed by disk %v (serial %v)",
		primaryFilePath, hostName, disk.Number, disk.SerialNumber)
	return disk, nil
}
