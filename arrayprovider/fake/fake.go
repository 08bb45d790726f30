// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package fake provides an in-memory StorageProvider used by tests
package fake

import (
	"sync"

	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

// Volume is an in-memory array volume.  Content is an opaque marker so that tests
// can verify an overwrite actually copied the source contents.
type Volume struct {
	Name         string
	SerialNumber string
	Size         uint64
	Content      string
}

// StorageProvider is an in-memory implementation of arrayprovider.StorageProvider.
// Per-call error injection drives the orchestrator failure paths.
type StorageProvider struct {
	mutex   sync.Mutex
	volumes []*Volume
	closed  bool

	// Overwrites records each completed overwrite as "target<-source"
	Overwrites []string

	// Error injection, consumed by the matching call when set
	GetVolumesErr      error
	OverwriteVolumeErr error
	CloseErr           error
}

// NewStorageProvider returns a provider holding the given volumes
func NewStorageProvider(volumes ...*Volume) *StorageProvider {
	return &StorageProvider{volumes: volumes}
}

// GetVolumes enumerates all volumes
func (provider *StorageProvider) GetVolumes() ([]*model.StorageVolume, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	if provider.GetVolumesErr != nil {
		return nil, provider.GetVolumesErr
	}
	volumes := make([]*model.StorageVolume, 0, len(provider.volumes))
	for _, volume := range provider.volumes {
		volumes = append(volumes, &model.StorageVolume{
			Name:         volume.Name,
			SerialNumber: volume.SerialNumber,
			Size:         volume.Size,
		})
	}
	return volumes, nil
}

// GetVolumeBySerial returns the one volume matching the serial number exactly
func (provider *StorageProvider) GetVolumeBySerial(serialNumber string) (*model.StorageVolume, error) {
	volumes, err := provider.GetVolumes()
	if err != nil {
		return nil, err
	}

	var matched []*model.StorageVolume
	for _, volume := range volumes {
		if volume.SerialNumber == serialNumber {
			matched = append(matched, volume)
		}
	}
	if len(matched) == 0 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, "no volume matched serial number %v", serialNumber)
	}
	if len(matched) > 1 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, "multiple (%v) volumes matched serial number %v", len(matched), serialNumber)
	}
	return matched[0], nil
}

// OverwriteVolume copies the source volume's content marker onto the target
func (provider *StorageProvider) OverwriteVolume(targetName, sourceName string) error {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	if provider.OverwriteVolumeErr != nil {
		return provider.OverwriteVolumeErr
	}
	target := provider.findByName(targetName)
	source := provider.findByName(sourceName)
	if target == nil || source == nil {
		return rerrors.NewRefreshErrorf(rerrors.NotFound, "volume %v or %v not found", targetName, sourceName)
	}
	target.Content = source.Content
	provider.Overwrites = append(provider.Overwrites, targetName+"<-"+sourceName)
	return nil
}

// Close marks the session closed
func (provider *StorageProvider) Close() error {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	provider.closed = true
	return provider.CloseErr
}

// Closed reports whether Close was called
func (provider *StorageProvider) Closed() bool {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return provider.closed
}

// VolumeContent returns the content marker of the named volume
func (provider *StorageProvider) VolumeContent(name string) string {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	if volume := provider.findByName(name); volume != nil {
		return volume.Content
	}
	return ""
}

func (provider *StorageProvider) findByName(name string) *Volume {
	for _, volume := range provider.volumes {
		if volume.Name == name {
			return volume
		}
	}
	return nil
}
