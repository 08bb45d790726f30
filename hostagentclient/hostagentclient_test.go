// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package hostagentclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const testToken = "agent-access-key"

// newFakeAgent starts an httptest server that mimics the disk agent endpoints
func newFakeAgent(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("DiskAgentAccessKey") != testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/v1/disks/bypath", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		accessPath := r.URL.Query().Get("accessPath")
		if accessPath != `E:\` {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(Response{
				Err: rerrors.NewRefreshErrorf(rerrors.NotFound, "no partition found with access path %v", accessPath),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(Response{
			Data: &model.HostDisk{Number: 2, SerialNumber: "SN-A"},
		})
	})
	mux.HandleFunc("/api/v1/disks/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/actions/offline") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var offlineReq model.DiskOfflineRequest
		_ = json.NewDecoder(r.Body).Decode(&offlineReq)
		if strings.Contains(r.URL.Path, "/99/") {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(Response{
				Err: rerrors.NewRefreshErrorf(rerrors.StateTransition, "disk 99 offline rejected"),
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// clientForServer builds a Client pointed at the httptest server
func clientForServer(t *testing.T, server *httptest.Server, token string) *Client {
	parsed, err := url.Parse(server.URL)
	assert.Nil(t, err)
	port, err := strconv.Atoi(parsed.Port())
	assert.Nil(t, err)
	return NewClient(parsed.Hostname(), port, token, 10*time.Second)
}

func TestClientGetDiskForPath(t *testing.T) {
	server := newFakeAgent(t)
	agentClient := clientForServer(t, server, testToken)

	disk, err := agentClient.GetDiskForPath(`E:\`)
	assert.Nil(t, err)
	assert.Equal(t, uint32(2), disk.Number)
	assert.Equal(t, "SN-A", disk.SerialNumber)

	// The client stamps the host name the lookup ran against
	assert.NotEmpty(t, disk.HostName)

	// Agent-side error arrives in the envelope and is returned as-is
	_, err = agentClient.GetDiskForPath(`Q:\`)
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.NotFound, rerrors.CodeOf(err))
}

func TestClientSetDiskOffline(t *testing.T) {
	server := newFakeAgent(t)
	agentClient := clientForServer(t, server, testToken)

	assert.Nil(t, agentClient.SetDiskOffline(2, true))

	// Remote-side rejection surfaces with the agent's own error code
	err := agentClient.SetDiskOffline(99, true)
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.StateTransition, rerrors.CodeOf(err))
}

func TestClientBadToken(t *testing.T) {
	server := newFakeAgent(t)
	agentClient := clientForServer(t, server, "wrong-token")

	_, err := agentClient.GetDiskForPath(`E:\`)
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.Unauthenticated, rerrors.CodeOf(err))
}

func TestClientUnreachableAgent(t *testing.T) {
	server := newFakeAgent(t)
	agentClient := clientForServer(t, server, testToken)
	server.Close()

	_, err := agentClient.GetDiskForPath(`E:\`)
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.RemoteExecution, rerrors.CodeOf(err))
}

func TestExecutor(t *testing.T) {
	server := newFakeAgent(t)
	parsed, err := url.Parse(server.URL)
	assert.Nil(t, err)
	port, err := strconv.Atoi(parsed.Port())
	assert.Nil(t, err)

	executor := NewExecutor(port, testToken, 10*time.Second)

	disk, err := executor.GetDiskForPath(parsed.Hostname(), `E:\`)
	assert.Nil(t, err)
	assert.Equal(t, parsed.Hostname(), disk.HostName)

	assert.Nil(t, executor.SetDiskOffline(parsed.Hostname(), 2, false))

	// One cached client per host
	assert.Len(t, executor.clients, 1)

	// Empty host name is rejected before any dispatch
	_, err = executor.GetDiskForPath("", `E:\`)
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.InvalidArgument, rerrors.CodeOf(err))
}
