// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package driver

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/hpe-storage/dbrefresh/hostagent/powershell"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const (
	// Shared error messages
	errorMessageEmptyAccessPath    = "empty access path"
	errorMessageEmptySerialNumber  = "disk %v has no serial number"
	errorMessageMultipleDisks      = "multiple (%v) disks matched"
	errorMessageMultiplePartitions = "multiple (%v) partitions own access path %v"
	errorMessageNoDiskFound        = "no disk found with number %v"
	errorMessageNoDiskWithSerial   = "no disk found with serial number %v"
	errorMessageNoPartitionForPath = "no partition owns access path %v"
	errorMessageCmdletFailed       = "cmdlet failed, rc=%v, output=%v"
)

// Driver provides a common interface for the disk agent's host operations
type Driver interface {
	// GET /api/v1/hosts
	GetHostInfo() (*model.Host, error)

	// GET /api/v1/disks or
	// GET /api/v1/disks?serial=serialNumber
	GetDisks(serialNumber string) ([]*model.HostDisk, error)

	// GET /api/v1/partitions or
	// GET /api/v1/partitions?accessPath=path
	GetPartitions(accessPath string) ([]*model.DiskPartition, error)

	// GET /api/v1/disks/bypath?accessPath=path
	GetDiskForPath(accessPath string) (*model.HostDisk, error)

	// PUT /api/v1/disks/{diskNumber}/actions/offline
	SetDiskOffline(diskNumber uint32, offline bool) error
}

// DiskAgent implements the Driver interface on top of the PowerShell storage cmdlets
type DiskAgent struct {
	execPartitions func() (string, int, error)
	execDisks      func() (string, int, error)
	execDisk       func(diskNumber uint32) (string, int, error)
	execOffline    func(diskNumber uint32, offline bool) (string, int, error)
	execRescan     func() (string, int, error)
}

// NewDiskAgent returns a Driver backed by the host's PowerShell storage cmdlets
func NewDiskAgent() *DiskAgent {
	return &DiskAgent{
		execPartitions: powershell.GetPartitions,
		execDisks:      powershell.GetDisks,
		execDisk:       powershell.GetDisk,
		execOffline:    powershell.SetDiskOffline,
		execRescan:     powershell.UpdateHostStorageCache,
	}
}

// GetHostInfo returns the agent host's name and domain
func (agent *DiskAgent) GetHostInfo() (*model.Host, error) {
	log.Trace(">>>>> GetHostInfo called")
	defer log.Trace("<<<<< GetHostInfo")

	hostName, err := os.Hostname()
	if err != nil {
		return nil, rerrors.NewRefreshError(err)
	}

	// On clustered hosts, Hostname returns the node name which is exactly what the
	// refresh orchestrator dispatches against.
	host := &model.Host{Name: hostName}
	if dot := strings.Index(hostName, "."); dot > 0 {
		host.Name = hostName[:dot]
		host.Domain = hostName[dot+1:]
	}
	return host, nil
}

// GetDisks reports the disks on this host.  If serialNumber is non-empty only the
// disk with the matching serial number is returned.
func (agent *DiskAgent) GetDisks(serialNumber string) ([]*model.HostDisk, error) {
	log.Tracef(">>>>> GetDisks called, serialNumber=%v", serialNumber)
	defer log.Trace("<<<<< GetDisks")

	output, rc, err := agent.execDisks()
	if err != nil {
		return nil, rerrors.NewRefreshError(rerrors.Internal, err)
	}
	if rc != 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.Internal, errorMessageCmdletFailed, rc, output)
	}

	disks, err := parseDisks(output)
	if err != nil {
		return nil, err
	}
	if serialNumber == "" {
		return disks, nil
	}

	var matched []*model.HostDisk
	for _, disk := range disks {
		if strings.EqualFold(disk.SerialNumber, serialNumber) {
			matched = append(matched, disk)
		}
	}
	if len(matched) == 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageNoDiskWithSerial, serialNumber)
	}
	if len(matched) > 1 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageMultipleDisks, len(matched))
	}
	return matched, nil
}

// GetPartitions reports the partitions on this host.  If accessPath is non-empty only
// partitions owning that access path are returned.
func (agent *DiskAgent) GetPartitions(accessPath string) ([]*model.DiskPartition, error) {
	log.Tracef(">>>>> GetPartitions called, accessPath=%v", accessPath)
	defer log.Trace("<<<<< GetPartitions")

	output, rc, err := agent.execPartitions()
	if err != nil {
		return nil, rerrors.NewRefreshError(rerrors.Internal, err)
	}
	if rc != 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.Internal, errorMessageCmdletFailed, rc, output)
	}

	partitions, err := parsePartitions(output)
	if err != nil {
		return nil, err
	}
	if accessPath == "" {
		return partitions, nil
	}

	var matched []*model.DiskPartition
	for _, partition := range partitions {
		if partitionOwnsPath(partition, accessPath) {
			matched = append(matched, partition)
		}
	}
	return matched, nil
}

// GetDiskForPath resolves the host partition owning the given access path and then the
// disk owning that partition.  Zero or multiple matches at either level is an error.
func (agent *DiskAgent) GetDiskForPath(accessPath string) (*model.HostDisk, error) {
	log.Tracef(">>>>> GetDiskForPath called, accessPath=%v", accessPath)
	defer log.Trace("<<<<< GetDiskForPath")

	if accessPath == "" {
		return nil, rerrors.NewRefreshError(rerrors.InvalidArgument, errorMessageEmptyAccessPath)
	}

	partitions, err := agent.GetPartitions(accessPath)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageNoPartitionForPath, accessPath)
	}
	if len(partitions) > 1 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageMultiplePartitions, len(partitions), accessPath)
	}

	return agent.getDiskByNumber(partitions[0].DiskNumber)
}

// SetDiskOffline takes the given disk offline or brings it back online.  Bringing a disk
// online triggers a host storage cache rescan first so the OS sees the overwritten
// partition table.
func (agent *DiskAgent) SetDiskOffline(diskNumber uint32, offline bool) error {
	log.Tracef(">>>>> SetDiskOffline called, diskNumber=%v, offline=%v", diskNumber, offline)
	defer log.Trace("<<<<< SetDiskOffline")

	// Already in the requested state is success, not an error
	disk, err := agent.getDiskByNumber(diskNumber)
	if err != nil {
		return err
	}
	if disk.IsOffline == offline {
		log.Infof("disk %v already has offline=%v, nothing to do", diskNumber, offline)
		return nil
	}

	if !offline {
		if output, rc, err := agent.execRescan(); (err != nil) || (rc != 0) {
			// A failed rescan is logged but not fatal; Set-Disk decides
			log.Warnf("host storage cache rescan failed, rc=%v, output=%v, err=%v", rc, output, err)
		}
	}

	output, rc, err := agent.execOffline(diskNumber, offline)
	if err != nil {
		return rerrors.NewRefreshError(rerrors.StateTransition, err)
	}
	if rc != 0 {
		return rerrors.NewRefreshErrorf(rerrors.StateTransition, errorMessageCmdletFailed, rc, output)
	}
	return nil
}

func (agent *DiskAgent) getDiskByNumber(diskNumber uint32) (*model.HostDisk, error) {
	output, rc, err := agent.execDisk(diskNumber)
	if err != nil {
		return nil, rerrors.NewRefreshError(rerrors.Internal, err)
	}
	if rc != 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.Internal, errorMessageCmdletFailed, rc, output)
	}

	disks, err := parseDisks(output)
	if err != nil {
		return nil, err
	}
	if len(disks) == 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageNoDiskFound, diskNumber)
	}
	if len(disks) > 1 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageMultipleDisks, len(disks))
	}
	if disks[0].SerialNumber == "" {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageEmptySerialNumber, diskNumber)
	}
	return disks[0], nil
}

// psPartition mirrors the properties selected from Get-Partition
type psPartition struct {
	DiskNumber      uint32   `json:"DiskNumber"`
	PartitionNumber uint32   `json:"PartitionNumber"`
	DriveLetter     string   `json:"DriveLetter"`
	AccessPaths     []string `json:"AccessPaths"`
	Size            uint64   `json:"Size"`
}

// psDisk mirrors the properties selected from Get-Disk
type psDisk struct {
	Number       uint32 `json:"Number"`
	SerialNumber string `json:"SerialNumber"`
	FriendlyName string `json:"FriendlyName"`
	Size         uint64 `json:"Size"`
	IsOffline    bool   `json:"IsOffline"`
}

func parsePartitions(output string) ([]*model.DiskPartition, error) {
	var records []psPartition
	if err := json.Unmarshal([]byte(output), &records); err != nil {
		return nil, rerrors.NewRefreshError(rerrors.Internal, err)
	}
	partitions := make([]*model.DiskPartition, 0, len(records))
	for _, record := range records {
		partitions = append(partitions, &model.DiskPartition{
			DiskNumber:      record.DiskNumber,
			PartitionNumber: record.PartitionNumber,
			DriveLetter:     record.DriveLetter,
			AccessPaths:     record.AccessPaths,
			Size:            record.Size,
		})
	}
	return partitions, nil
}

func parseDisks(output string) ([]*model.HostDisk, error) {
	var records []psDisk
	if err := json.Unmarshal([]byte(output), &records); err != nil {
		return nil, rerrors.NewRefreshError(rerrors.Internal, err)
	}
	disks := make([]*model.HostDisk, 0, len(records))
	for _, record := range records {
		disks = append(disks, &model.HostDisk{
			Number:       record.Number,
			SerialNumber: strings.TrimSpace(record.SerialNumber),
			FriendlyName: record.FriendlyName,
			Size:         record.Size,
			IsOffline:    record.IsOffline,
		})
	}
	return disks, nil
}

// partitionOwnsPath reports whether the partition owns the given access path, matching
// either a drive letter form ("E:", "E:\") or a mount path, case insensitively.
func partitionOwnsPath(partition *model.DiskPartition, accessPath string) bool {
	normalized := normalizeAccessPath(accessPath)
	if (partition.DriveLetter != "") && (normalizeAccessPath(partition.DriveLetter+`:\`) == normalized) {
		return true
	}
	for _, path := range partition.AccessPaths {
		if normalizeAccessPath(path) == normalized {
			return true
		}
	}
	return false
}

func normalizeAccessPath(path string) string {
	return strings.ToLower(strings.TrimRight(path, `\`))
}
