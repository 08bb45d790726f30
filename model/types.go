// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package model

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// This model package *only* defines the objects and properties that cross component boundaries
// during a database refresh: between the refresh orchestrator and the per-host disk agent, and
// between the orchestrator and the array storage provider.  JSON properties are all lower case.
//
///////////////////////////////////////////////////////////////////////////////////////////////////

const (
	// DatabaseStateOnline - database engine reports the database ONLINE
	DatabaseStateOnline = "ONLINE"

	// DatabaseStateOffline - database engine reports the database OFFLINE
	DatabaseStateOffline = "OFFLINE"

	// DatabaseStateRestoring - database engine reports the database RESTORING
	DatabaseStateRestoring = "RESTORING"

	// DatabaseStateRecovering - database engine reports the database RECOVERING
	DatabaseStateRecovering = "RECOVERING"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
// Host Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// Host : disk agent host information
type Host struct {
	UUID   string `json:"id,omitempty"`     // Unique host identifier
	Name   string `json:"name,omitempty"`   // Host name
	Domain string `json:"domain,omitempty"` // Host domain name
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// HostDisk Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// HostDisk : a host-level disk backing database files
type HostDisk struct {
	HostName     string `json:"host_name,omitempty"`     // Host that owns the disk
	Number       uint32 `json:"number"`                  // OS disk number
	SerialNumber string `json:"serial_number,omitempty"` // Disk serial number (matches array volume serial)
	FriendlyName string `json:"friendly_name,omitempty"` // OS friendly name
	Size         uint64 `json:"size,omitempty"`          // Disk size in bytes
	IsOffline    bool   `json:"is_offline"`              // Disk offline at the host?
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// DiskPartition Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// DiskPartition : a partition on a host disk
type DiskPartition struct {
	DiskNumber      uint32   `json:"disk_number"`               // Disk that owns the partition
	PartitionNumber uint32   `json:"partition_number"`          // Partition number on the disk
	DriveLetter     string   `json:"drive_letter,omitempty"`    // Drive letter, if assigned (e.g. "E")
	AccessPaths     []string `json:"access_paths,omitempty"`    // All access paths (e.g. "E:\")
	Size            uint64   `json:"size,omitempty"`            // Partition size in bytes
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// StorageVolume Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// StorageVolume : the array-side volume matching a host disk
type StorageVolume struct {
	Name         string `json:"name,omitempty"`          // Volume name on the array
	SerialNumber string `json:"serial_number,omitempty"` // Volume serial number
	Size         uint64 `json:"size,omitempty"`          // Volume size in bytes
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// RefreshRequest Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// RefreshRequest carries the parameters of one refresh operation.  It is created at invocation
// and never mutated.
type RefreshRequest struct {
	DatabaseName        string `json:"database_name"`        // Database to refresh
	SourceInstance      string `json:"source_instance"`      // Instance hosting the source database
	DestinationInstance string `json:"destination_instance"` // Instance hosting the destination database
	ArrayEndpoint       string `json:"array_endpoint"`       // Storage array management endpoint
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Disk Agent Wire Objects
///////////////////////////////////////////////////////////////////////////////////////////////////

// DiskOfflineRequest : request body for the disk offline/online endpoint
type DiskOfflineRequest struct {
	Offline bool `json:"offline"` // true takes the disk offline, false brings it online
}

// KeyFileInfo : response body for the keyfile endpoint
type KeyFileInfo struct {
	Path string `json:"path,omitempty"` // Location of the agent access key file
}
