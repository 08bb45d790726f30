// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package etcd provides the optional distributed refresh lock and a small
// key/value client over an etcd cluster.  Concurrent refreshes of the same
// destination database race, so callers that can reach an etcd cluster take a
// lock keyed on the destination before mutating anything.
package etcd

import (
	"context"
	"fmt"
	"time"

	"github.com/Scalingo/go-etcd-lock/lock"
	"github.com/coreos/etcd/clientv3"

	log "github.com/hpe-storage/dbrefresh/logger"
)

const (
	// DefaultPort is the default etcd client port
	DefaultPort = "2379"

	// DefaultVersion is the supported etcd API version
	DefaultVersion = "v3"

	// DefaultLockTTLSeconds bounds how long a crashed holder keeps the lock
	DefaultLockTTLSeconds = 30

	defaultDialTimeout    = 10 * time.Second
	defaultRequestTimeout = 10 * time.Second

	// probeLockTTLSeconds is used by IsLocked probes, released immediately
	probeLockTTLSeconds = 15
)

// Client wraps an etcd v3 client and a distributed locker
type Client struct {
	endPoints []string
	version   string
	cli       *clientv3.Client
	locker    lock.Locker
}

// NewClient creates an etcd client for the given endpoints
func NewClient(endPoints []string, version string) (*Client, error) {
	log.Tracef(">>>>> NewClient called, endPoints=%v, version=%v", endPoints, version)
	defer log.Trace("<<<<< NewClient")

	if version != DefaultVersion {
		return nil, fmt.Errorf("unsupported etcd version %v, only %v is supported", version, DefaultVersion)
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endPoints,
		DialTimeout: defaultDialTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		endPoints: endPoints,
		version:   version,
		cli:       cli,
		locker:    lock.NewEtcdLocker(cli),
	}, nil
}

// CloseClient closes the underlying etcd connection
func (client *Client) CloseClient() error {
	return client.cli.Close()
}

// Put stores the key/value pair
func (client *Client) Put(key string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()
	_, err := client.cli.Put(ctx, key, value)
	return err
}

// PutWithLeaseExpiry stores the key/value pair with a lease of ttl seconds.
// The key is removed automatically when the lease expires.
func (client *Client) PutWithLeaseExpiry(key string, value string, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	lease, err := client.cli.Grant(ctx, ttl)
	if err != nil {
		return err
	}
	_, err = client.cli.Put(ctx, key, value, clientv3.WithLease(lease.ID))
	return err
}

// Get returns the value stored at key, or nil if the key does not exist
func (client *Client) Get(key string) (*string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	resp, err := client.cli.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	value := string(resp.Kvs[0].Value)
	return &value, nil
}

// Delete removes the key
func (client *Client) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()
	_, err := client.cli.Delete(ctx, key)
	return err
}

// AcquireLock attempts to take the lock once; an already-held lock is an error
func (client *Client) AcquireLock(key string, ttl int) (lock.Lock, error) {
	log.Tracef(">>>>> AcquireLock called, key=%v, ttl=%v", key, ttl)
	defer log.Trace("<<<<< AcquireLock")

	return client.locker.Acquire(key, ttl)
}

// WaitAcquireLock blocks until the lock is available, then takes it
func (client *Client) WaitAcquireLock(key string, ttl int) (lock.Lock, error) {
	log.Tracef(">>>>> WaitAcquireLock called, key=%v, ttl=%v", key, ttl)
	defer log.Trace("<<<<< WaitAcquireLock")

	return client.locker.WaitAcquire(key, ttl)
}

// ReleaseLock releases a previously acquired lock
func (client *Client) ReleaseLock(lck lock.Lock) error {
	log.Trace(">>>>> ReleaseLock called")
	defer log.Trace("<<<<< ReleaseLock")

	return lck.Release()
}

// IsLocked reports whether the key is currently locked by probing with a short
// lived acquire that is released immediately on success
func (client *Client) IsLocked(key string) (bool, error) {
	probe, err := client.locker.Acquire(key, probeLockTTLSeconds)
	if err != nil {
		if _, alreadyLocked := err.(*lock.Error); alreadyLocked {
			return true, nil
		}
		return false, err
	}
	if err := probe.Release(); err != nil {
		log.Warnf("unable to release probe lock on key %v, err=%v", key, err)
	}
	return false, nil
}
