// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package driver

import (
	"testing"

	"github.com/hpe-storage/dbrefresh/rerrors"
	"github.com/stretchr/testify/assert"
)

const (
	samplePartitions = `[` +
		`{"DiskNumber":1,"PartitionNumber":2,"DriveLetter":"E","AccessPaths":["E:\\","\\\\?\\Volume{11111111-0000-0000-0000-000000000001}\\"],"Size":5333057536},` +
		`{"DiskNumber":2,"PartitionNumber":2,"DriveLetter":"F","AccessPaths":["F:\\","\\\\?\\Volume{11111111-0000-0000-0000-000000000002}\\"],"Size":5333057536}]`

	sampleDisks = `[` +
		`{"Number":1,"SerialNumber":"SN-A","FriendlyName":"PURE FlashArray","Size":107374182400,"IsOffline":false},` +
		`{"Number":2,"SerialNumber":"SN-B","FriendlyName":"PURE FlashArray","Size":107374182400,"IsOffline":false}]`
)

// fakeAgent returns a DiskAgent whose cmdlets replay canned JSON
func fakeAgent(partitionsOut, disksOut string, offlineRC int) (*DiskAgent, *[]string) {
	var calls []string
	agent := &DiskAgent{
		execPartitions: func() (string, int, error) {
			calls = append(calls, "partitions")
			return partitionsOut, 0, nil
		},
		execDisks: func() (string, int, error) {
			calls = append(calls, "disks")
			return disksOut, 0, nil
		},
		execDisk: func(diskNumber uint32) (string, int, error) {
			calls = append(calls, "disk")
			switch diskNumber {
			case 1:
				return `[{"Number":1,"SerialNumber":"SN-A","FriendlyName":"PURE FlashArray","Size":107374182400,"IsOffline":false}]`, 0, nil
			case 2:
				return `[{"Number":2,"SerialNumber":"SN-B","FriendlyName":"PURE FlashArray","Size":107374182400,"IsOffline":false}]`, 0, nil
			}
			return `[]`, 0, nil
		},
		execOffline: func(diskNumber uint32, offline bool) (string, int, error) {
			calls = append(calls, "offline")
			return "", offlineRC, nil
		},
		execRescan: func() (string, int, error) {
			calls = append(calls, "rescan")
			return "", 0, nil
		},
	}
	return agent, &calls
}

func TestGetDiskForPath(t *testing.T) {
	tests := []struct {
		name       string
		accessPath string
		wantNumber uint32
		wantSerial string
		wantErr    bool
		wantCode   rerrors.RefreshErrorCode
	}{
		{"drive root", `E:\`, 1, "SN-A", false, rerrors.OK},
		{"drive letter only", `F:`, 2, "SN-B", false, rerrors.OK},
		{"case insensitive", `e:\`, 1, "SN-A", false, rerrors.OK},
		{"no partition for path", `X:\`, 0, "", true, rerrors.NotFound},
		{"empty path", ``, 0, "", true, rerrors.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, _ := fakeAgent(samplePartitions, sampleDisks, 0)
			disk, err := agent.GetDiskForPath(tt.accessPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetDiskForPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				assert.Equal(t, tt.wantCode, rerrors.CodeOf(err))
				return
			}
			assert.Equal(t, tt.wantNumber, disk.Number)
			assert.Equal(t, tt.wantSerial, disk.SerialNumber)
		})
	}
}

func TestGetDiskForPathAmbiguous(t *testing.T) {
	// Two partitions claiming the same access path must fail, never pick one
	dup := `[` +
		`{"DiskNumber":1,"PartitionNumber":2,"DriveLetter":"E","AccessPaths":["E:\\"],"Size":1},` +
		`{"DiskNumber":2,"PartitionNumber":2,"DriveLetter":"","AccessPaths":["E:\\"],"Size":1}]`
	agent, _ := fakeAgent(dup, sampleDisks, 0)

	_, err := agent.GetDiskForPath(`E:\`)
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.NotFound, rerrors.CodeOf(err))
}

func TestGetDisksBySerial(t *testing.T) {
	agent, _ := fakeAgent(samplePartitions, sampleDisks, 0)

	disks, err := agent.GetDisks("SN-B")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(disks))
	assert.Equal(t, uint32(2), disks[0].Number)

	_, err = agent.GetDisks("SN-MISSING")
	assert.Equal(t, rerrors.NotFound, rerrors.CodeOf(err))
}

func TestSetDiskOffline(t *testing.T) {
	// Transition requested
	agent, calls := fakeAgent(samplePartitions, sampleDisks, 0)
	assert.Nil(t, agent.SetDiskOffline(1, true))
	assert.Contains(t, *calls, "offline")

	// Already in requested state: no Set-Disk call
	agent, calls = fakeAgent(samplePartitions, sampleDisks, 0)
	agent.execDisk = func(uint32) (string, int, error) {
		*calls = append(*calls, "disk")
		return `[{"Number":1,"SerialNumber":"SN-A","Size":1,"IsOffline":true}]`, 0, nil
	}
	assert.Nil(t, agent.SetDiskOffline(1, true))
	assert.NotContains(t, *calls, "offline")

	// Cmdlet rejection surfaces as a StateTransition error
	agent, _ = fakeAgent(samplePartitions, sampleDisks, 1)
	err := agent.SetDiskOffline(1, true)
	assert.Equal(t, rerrors.StateTransition, rerrors.CodeOf(err))
}

func TestSetDiskOnlineRescansFirst(t *testing.T) {
	agent, calls := fakeAgent(samplePartitions, sampleDisks, 0)
	agent.execDisk = func(uint32) (string, int, error) {
		*calls = append(*calls, "disk")
		return `[{"Number":1,"SerialNumber":"SN-A","Size":1,"IsOffline":true}]`, 0, nil
	}
	assert.Nil(t, agent.SetDiskOffline(1, false))
	assert.Equal(t, []string{"disk", "rescan", "offline"}, *calls)
}
