// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package powershell

import (
	"fmt"

	log "github.com/hpe-storage/dbrefresh/logger"
)

const (
	// TimeoutSetDiskOffline specifies the Set-Disk cmdlet timeout (in seconds).  Taking a
	// disk offline makes the OS flush and release it which can take a while on busy hosts.
	TimeoutSetDiskOffline = 2 * 60

	// TimeoutUpdateHostStorageCache specifies the Update-HostStorageCache cmdlet timeout (in seconds)
	TimeoutUpdateHostStorageCache = 2 * 60
)

// Properties selected from Get-Partition and Get-Disk.  DriveLetter is a [char] on the
// PowerShell side so it is forced to a string before JSON conversion.
const (
	psPartitionSelect = `Select-Object DiskNumber,PartitionNumber,@{n='DriveLetter';e={[string]$_.DriveLetter}},AccessPaths,Size`
	psDiskSelect      = `Select-Object Number,SerialNumber,FriendlyName,Size,IsOffline`
)

// GetPartitions wraps the Get-Partition cmdlet and returns all host partitions as a JSON
// array.  ConvertTo-Json is handed an explicit array so a single partition still converts
// to a JSON array.
func GetPartitions() (string, int, error) {
	log.Trace(">>>>> GetPartitions")
	defer log.Trace("<<<<< GetPartitions")

	arg := fmt.Sprintf(`ConvertTo-Json -Compress -InputObject @(Get-Partition | %v)`, psPartitionSelect)
	return execCommandOutput(arg)
}

// GetDisks wraps the Get-Disk cmdlet and returns all host disks as a JSON array
func GetDisks() (string, int, error) {
	log.Trace(">>>>> GetDisks")
	defer log.Trace("<<<<< GetDisks")

	arg := fmt.Sprintf(`ConvertTo-Json -Compress -InputObject @(Get-Disk | %v)`, psDiskSelect)
	return execCommandOutput(arg)
}

// GetDisk wraps the Get-Disk cmdlet for a single disk number
func GetDisk(diskNumber uint32) (string, int, error) {
	log.Tracef(">>>>> GetDisk, diskNumber=%v", diskNumber)
	defer log.Trace("<<<<< GetDisk")

	arg := fmt.Sprintf(`ConvertTo-Json -Compress -InputObject @(Get-Disk -Number %v | %v)`, diskNumber, psDiskSelect)
	return execCommandOutput(arg)
}

// SetDiskOffline wraps the Set-Disk cmdlet with the -Number and -IsOffline options
func SetDiskOffline(diskNumber uint32, isOffline bool) (string, int, error) {
	log.Tracef(">>>>> SetDiskOffline, diskNumber=%v, isOffline=%v", diskNumber, isOffline)
	defer log.Trace("<<<<< SetDiskOffline")

	arg := fmt.Sprintf(`Set-Disk -Number %v -IsOffline %v`, diskNumber, psBoolToText(isOffline))
	return execCommandOutputWithTimeout(arg, TimeoutSetDiskOffline)
}

// UpdateHostStorageCache wraps the Update-HostStorageCache cmdlet.  Called after a volume
// overwrite so the OS rereads the (replaced) partition table before the disk is used.
func UpdateHostStorageCache() (string, int, error) {
	log.Trace(">>>>> UpdateHostStorageCache")
	defer log.Trace("<<<<< UpdateHostStorageCache")

	return execCommandOutputWithTimeout(`Update-HostStorageCache`, TimeoutUpdateHostStorageCache)
}
