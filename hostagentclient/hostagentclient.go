// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package hostagentclient is the REST client for the per-host disk agent.  It is
// the refresh orchestrator's remote executor: every host-level disk operation is
// dispatched through this package to the agent on the named host.
package hostagentclient

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hpe-storage/dbrefresh/connectivity"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const (
	// REST endpoint API version
	apiVersion = "api/v1"

	// Host Endpoints
	hostURI = apiVersion + "/hosts" // api/v1/hosts

	// Disk Endpoints
	disksURI       = apiVersion + "/disks"                     // api/v1/disks
	diskByPathURI  = disksURI + "/bypath?accessPath=%v"        // api/v1/disks/bypath?accessPath=path
	diskOfflineURI = disksURI + "/%v/actions/offline"          // api/v1/disks/{diskNumber}/actions/offline
	partitionsURI  = apiVersion + "/partitions?accessPath=%v"  // api/v1/partitions?accessPath=path
)

const (
	errorMessageEmptyHostName = "empty host name"
)

// Response object defines the data and/or error that are returned by an agent endpoint
type Response struct {
	Data interface{}            `json:"data,omitempty"`
	Err  *rerrors.RefreshError  `json:"errors,omitempty"`
}

// Client talks to the disk agent on a single host
type Client struct {
	hostName string
	client   *connectivity.Client
	header   map[string]string
}

// NewClient returns a client for the disk agent on the given host.  The token is the
// agent's access key; the timeout bounds every request.
func NewClient(hostName string, port int, token string, timeout time.Duration) *Client {
	return &Client{
		hostName: hostName,
		client:   connectivity.NewHTTPClientWithTimeout(fmt.Sprintf("http://%v:%v", hostName, port), timeout),
		header:   map[string]string{"DiskAgentAccessKey": token},
	}
}

// GetHostInfo returns the agent host's identity
func (agentClient *Client) GetHostInfo() (host *model.Host, err error) {
	log.Tracef(">>>>> GetHostInfo called, host=%v", agentClient.hostName)
	defer log.Trace("<<<<< GetHostInfo")

	agentResp := Response{Data: &host, Err: nil}
	if err = agentClient.doJSON("GET", hostURI, nil, &agentResp); err != nil {
		return nil, err
	}
	return host, nil
}

// GetDiskForPath resolves the host disk backing the given access path
func (agentClient *Client) GetDiskForPath(accessPath string) (disk *model.HostDisk, err error) {
	log.Tracef(">>>>> GetDiskForPath called, host=%v, accessPath=%v", agentClient.hostName, accessPath)
	defer log.Trace("<<<<< GetDiskForPath")

	agentResp := Response{Data: &disk, Err: nil}
	uri := fmt.Sprintf(diskByPathURI, urlEscape(accessPath))
	if err = agentClient.doJSON("GET", uri, nil, &agentResp); err != nil {
		return nil, err
	}
	disk.HostName = agentClient.hostName
	return disk, nil
}

// GetPartitions enumerates the partitions owning the given access path
func (agentClient *Client) GetPartitions(accessPath string) (partitions []*model.DiskPartition, err error) {
	log.Tracef(">>>>> GetPartitions called, host=%v, accessPath=%v", agentClient.hostName, accessPath)
	defer log.Trace("<<<<< GetPartitions")

	agentResp := Response{Data: &partitions, Err: nil}
	uri := fmt.Sprintf(partitionsURI, urlEscape(accessPath))
	if err = agentClient.doJSON("GET", uri, nil, &agentResp); err != nil {
		return nil, err
	}
	return partitions, nil
}

// SetDiskOffline takes the disk offline at the host, or brings it back online
func (agentClient *Client) SetDiskOffline(diskNumber uint32, offline bool) (err error) {
	log.Tracef(">>>>> SetDiskOffline called, host=%v, diskNumber=%v, offline=%v", agentClient.hostName, diskNumber, offline)
	defer log.Trace("<<<<< SetDiskOffline")

	agentResp := Response{Data: nil, Err: nil}
	uri := fmt.Sprintf(diskOfflineURI, diskNumber)
	return agentClient.doJSON("PUT", uri, &model.DiskOfflineRequest{Offline: offline}, &agentResp)
}

// doJSON submits the request and folds transport, authorization and remote-side
// failures into distinct refresh error codes so the orchestrator can tell them apart.
func (agentClient *Client) doJSON(action, path string, payload interface{}, agentResp *Response) error {
	code, err := agentClient.client.DoJSON(&connectivity.Request{
		Action:        action,
		Path:          path,
		Header:        agentClient.header,
		Payload:       payload,
		Response:      agentResp,
		ResponseError: agentResp,
	})
	if err == nil {
		return nil
	}

	// The agent's own error arrives in the response envelope and is returned as-is
	if agentResp.Err != nil {
		return agentResp.Err
	}
	if code == http.StatusUnauthorized {
		return rerrors.NewRefreshErrorf(rerrors.Unauthenticated, "agent on host %v rejected the access key", agentClient.hostName)
	}
	if code == 0 {
		return rerrors.NewRefreshErrorf(rerrors.RemoteExecution, "unable to reach agent on host %v: %v", agentClient.hostName, err)
	}
	return rerrors.NewRefreshError(rerrors.RemoteExecution, err)
}

// Executor dispatches disk operations to the agent on any named host.  Clients are
// created lazily and reused, one per host, each used serially.
type Executor struct {
	port    int
	token   string
	timeout time.Duration

	mutex   sync.Mutex
	clients map[string]*Client
}

// NewExecutor returns an Executor using the given agent port and access token
func NewExecutor(port int, token string, timeout time.Duration) *Executor {
	return &Executor{
		port:    port,
		token:   token,
		timeout: timeout,
		clients: make(map[string]*Client),
	}
}

// GetDiskForPath resolves the disk backing accessPath on the named host
func (executor *Executor) GetDiskForPath(hostName, accessPath string) (*model.HostDisk, error) {
	agentClient, err := executor.clientForHost(hostName)
	if err != nil {
		return nil, err
	}
	return agentClient.GetDiskForPath(accessPath)
}

// SetDiskOffline changes the offline state of the given disk on the named host
func (executor *Executor) SetDiskOffline(hostName string, diskNumber uint32, offline bool) error {
	agentClient, err := executor.clientForHost(hostName)
	if err != nil {
		return err
	}
	return agentClient.SetDiskOffline(diskNumber, offline)
}

func urlEscape(value string) string {
	return url.QueryEscape(value)
}

func (executor *Executor) clientForHost(hostName string) (*Client, error) {
	if hostName == "" {
		return nil, rerrors.NewRefreshError(rerrors.InvalidArgument, errorMessageEmptyHostName)
	}

	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	if agentClient, ok := executor.clients[hostName]; ok {
		return agentClient, nil
	}
	agentClient := NewClient(hostName, executor.port, executor.token, executor.timeout)
	executor.clients[hostName] = agentClient
	return agentClient, nil
}
