// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
	"github.com/stretchr/testify/assert"
)

const testAccessKey = "ba7f223f-4ce4-aca9-9ffa-150b6df50be0"

// fakeDriver implements agentDriver.Driver for handler tests
type fakeDriver struct {
	disk        *model.HostDisk
	offlineErr  error
	lastOffline *bool
}

func (d *fakeDriver) GetHostInfo() (*model.Host, error) {
	return &model.Host{Name: "SQLNODE01", Domain: "corp.example.net"}, nil
}

func (d *fakeDriver) GetDisks(serialNumber string) ([]*model.HostDisk, error) {
	if (serialNumber != "") && (serialNumber != d.disk.SerialNumber) {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, "no disk found with serial number %v", serialNumber)
	}
	return []*model.HostDisk{d.disk}, nil
}

func (d *fakeDriver) GetPartitions(accessPath string) ([]*model.DiskPartition, error) {
	return []*model.DiskPartition{{DiskNumber: d.disk.Number, DriveLetter: "E"}}, nil
}

func (d *fakeDriver) GetDiskForPath(accessPath string) (*model.HostDisk, error) {
	return d.disk, nil
}

func (d *fakeDriver) SetDiskOffline(diskNumber uint32, offline bool) error {
	d.lastOffline = &offline
	return d.offlineErr
}

func testServer(t *testing.T, fake *fakeDriver) *httptest.Server {
	oldDriver, oldKey := driver, agentKeyGUID
	driver, agentKeyGUID = fake, testAccessKey
	t.Cleanup(func() { driver, agentKeyGUID = oldDriver, oldKey })

	router := mux.NewRouter().StrictSlash(true)
	router.Methods("GET").Path("/api/v1/hosts").HandlerFunc(GetHostInfo)
	router.Methods("GET").Path("/api/v1/disks").HandlerFunc(GetDisks)
	router.Methods("GET").Path("/api/v1/disks/bypath").HandlerFunc(GetDiskForPath)
	router.Methods("PUT").Path("/api/v1/disks/{diskNumber}/actions/offline").HandlerFunc(SetDiskOffline)
	router.Methods("GET").Path("/api/v1/keyfile").HandlerFunc(GetKeyfile)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, method, url, key string, body interface{}) (*http.Response, Response) {
	var reqBody *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		assert.Nil(t, err)
		reqBody = bytes.NewReader(buf)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	assert.Nil(t, err)
	if key != "" {
		req.Header.Set(AccessKeyHeader, key)
	}

	resp, err := http.DefaultClient.Do(req)
	assert.Nil(t, err)
	defer resp.Body.Close()

	var envelope Response
	json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope
}

func TestRequestHeaderValidation(t *testing.T) {
	fake := &fakeDriver{disk: &model.HostDisk{Number: 2, SerialNumber: "SN-A"}}
	server := testServer(t, fake)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"valid key", testAccessKey, http.StatusOK},
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "not-the-key", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, "GET", server.URL+"/api/v1/hosts", tt.key, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	// keyfile endpoint never requires the key
	resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/keyfile", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, envelope.Data)
}

func TestGetDiskForPathHandler(t *testing.T) {
	fake := &fakeDriver{disk: &model.HostDisk{Number: 2, SerialNumber: "SN-A"}}
	server := testServer(t, fake)

	resp, envelope := doRequest(t, "GET", server.URL+"/api/v1/disks/bypath?accessPath=E:%5C", testAccessKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf, _ := json.Marshal(envelope.Data)
	var disk model.HostDisk
	assert.Nil(t, json.Unmarshal(buf, &disk))
	assert.Equal(t, "SN-A", disk.SerialNumber)

	// Missing accessPath query parameter
	resp, _ = doRequest(t, "GET", server.URL+"/api/v1/disks/bypath", testAccessKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetDiskOfflineHandler(t *testing.T) {
	fake := &fakeDriver{disk: &model.HostDisk{Number: 2, SerialNumber: "SN-A"}}
	server := testServer(t, fake)

	resp, _ := doRequest(t, "PUT", server.URL+"/api/v1/disks/2/actions/offline", testAccessKey, model.DiskOfflineRequest{Offline: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, fake.lastOffline)
	assert.Equal(t, true, *fake.lastOffline)

	// Rejection from the OS maps to HTTP 500 with the error in the envelope
	fake.offlineErr = rerrors.NewRefreshError(rerrors.StateTransition, "disk is in use")
	resp, envelope := doRequest(t, "PUT", server.URL+"/api/v1/disks/2/actions/offline", testAccessKey, model.DiskOfflineRequest{Offline: true})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotNil(t, envelope.Err)

	// Bad disk number in the path
	resp, _ = doRequest(t, "PUT", server.URL+"/api/v1/disks/notanumber/actions/offline", testAccessKey, model.DiskOfflineRequest{Offline: true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
