// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	agentDriver "github.com/hpe-storage/dbrefresh/hostagent/driver"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

var (
	driver agentDriver.Driver
)

const (
	// Shared error messages
	errorMessageEmptyAccessPath       = "empty access path passed in the request"
	errorMessageHTTPHeaderNotProvided = "http.Header not provided for authorization"
	errorMessageInvalidDiskNumber     = "invalid disk number passed in the request"
	errorMessageInvalidRequestBody    = "invalid request body"
	errorMessageInvalidToken          = "invalid token: "
	errorMessageTokenNotSupplied      = "agent access token not supplied"
)

const (
	// AccessKeyHeader carries the agent access key on every authenticated endpoint
	AccessKeyHeader = "DiskAgentAccessKey"

	// Query parameters
	queryAccessPath   = "accessPath" // e.g. api/v1/partitions?accessPath=E:\
	querySerialNumber = "serial"     // e.g. api/v1/disks?serial=1234
)

// Response :
type Response struct {
	Data interface{} `json:"data,omitempty"`
	Err  interface{} `json:"errors,omitempty"`
}

func init() {
	driver = agentDriver.NewDiskAgent()
}

// GetHostInfo retrieves the agent host's identity
// GET /api/v1/hosts
func GetHostInfo(w http.ResponseWriter, r *http.Request) {
	if !validateRequestHeader(w, r) {
		return
	}
	var agentResp Response
	host, err := driver.GetHostInfo()
	if err != nil {
		handleError(w, agentResp, err, http.StatusInternalServerError)
		return
	}
	agentResp.Data = host
	json.NewEncoder(w).Encode(agentResp)
}

// GetDisks retrieves all disks on the host, optionally filtered by serial number
// GET /api/v1/disks[?serial=]
func GetDisks(w http.ResponseWriter, r *http.Request) {
	if !validateRequestHeader(w, r) {
		return
	}
	var agentResp Response
	serialNumber := ""
	if keys, ok := r.URL.Query()[querySerialNumber]; ok && (len(keys) == 1) {
		serialNumber = keys[0]
	}

	disks, err := driver.GetDisks(serialNumber)
	if err != nil {
		handleError(w, agentResp, err, statusForError(err))
		return
	}
	agentResp.Data = disks
	json.NewEncoder(w).Encode(agentResp)
}

// GetPartitions retrieves all partitions on the host, optionally filtered by access path
// GET /api/v1/partitions[?accessPath=]
func GetPartitions(w http.ResponseWriter, r *http.Request) {
	if !validateRequestHeader(w, r) {
		return
	}
	var agentResp Response
	accessPath := ""
	if keys, ok := r.URL.Query()[queryAccessPath]; ok && (len(keys) == 1) {
		accessPath = keys[0]
	}

	partitions, err := driver.GetPartitions(accessPath)
	if err != nil {
		handleError(w, agentResp, err, statusForError(err))
		return
	}
	agentResp.Data = partitions
	json.NewEncoder(w).Encode(agentResp)
}

// GetDiskForPath resolves the disk backing the given access path
// GET /api/v1/disks/bypath?accessPath=
func GetDiskForPath(w http.ResponseWriter, r *http.Request) {
	if !validateRequestHeader(w, r) {
		return
	}
	var agentResp Response
	accessPath := ""
	if keys, ok := r.URL.Query()[queryAccessPath]; ok && (len(keys) == 1) {
		accessPath = keys[0]
	}
	if accessPath == "" {
		handleError(w, agentResp, rerrors.NewRefreshError(rerrors.InvalidArgument, errorMessageEmptyAccessPath), http.StatusBadRequest)
		return
	}

	disk, err := driver.GetDiskForPath(accessPath)
	if err != nil {
		handleError(w, agentResp, err, statusForError(err))
		return
	}
	agentResp.Data = disk
	json.NewEncoder(w).Encode(agentResp)
}

// SetDiskOffline takes the given disk offline or brings it back online
// PUT /api/v1/disks/{diskNumber}/actions/offline
func SetDiskOffline(w http.ResponseWriter, r *http.Request) {
	if !validateRequestHeader(w, r) {
		return
	}
	var agentResp Response

	vars := mux.Vars(r)
	diskNumber, err := strconv.ParseUint(vars["diskNumber"], 10, 32)
	if err != nil {
		handleError(w, agentResp, rerrors.NewRefreshError(rerrors.InvalidArgument, errorMessageInvalidDiskNumber), http.StatusBadRequest)
		return
	}

	var offlineReq model.DiskOfflineRequest
	if err := json.NewDecoder(r.Body).Decode(&offlineReq); err != nil {
		handleError(w, agentResp, rerrors.NewRefreshError(rerrors.InvalidArgument, errorMessageInvalidRequestBody), http.StatusBadRequest)
		return
	}

	if err := driver.SetDiskOffline(uint32(diskNumber), offlineReq.Offline); err != nil {
		handleError(w, agentResp, err, statusForError(err))
		return
	}
	json.NewEncoder(w).Encode(agentResp)
}

// handleError writes the given error into the response envelope
func handleError(w http.ResponseWriter, agentResp Response, err error, statusCode int) {
	log.Errorf("request failed, err=%v", err)
	agentResp.Err = rerrors.NewRefreshError(err)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(agentResp)
}

// statusForError maps refresh error codes onto HTTP status codes
func statusForError(err error) int {
	switch rerrors.CodeOf(err) {
	case rerrors.NotFound:
		return http.StatusNotFound
	case rerrors.InvalidArgument:
		return http.StatusBadRequest
	case rerrors.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Refresh orchestrators send an authorization key in the request header for every agent
// endpoint except for the "keyfile" endpoint.  The "keyfile" endpoint is used to retrieve
// the location of the key file; only processes with administrator access can read the key
// file itself.  This private helper validates that the authorization key is set correctly
// in the header, writing the error response on failure.
func validateRequestHeader(w http.ResponseWriter, r *http.Request) bool {

	status := false
	var err error
	if (r == nil) || (r.Header == nil) {
		// If no header was passed in, fail the request
		err = rerrors.NewRefreshError(rerrors.Unauthenticated, errorMessageHTTPHeaderNotProvided)
	} else {

		// Check each key/value pair available in the header
		for key, val := range r.Header {

			// Skip all entries except for the access key
			if !strings.EqualFold(key, AccessKeyHeader) || (len(val) != 1) {
				continue
			}

			// If the authorization key matches, return no error
			if (val[0] != "") && (val[0] == agentAccessKey()) {
				// Valid token provided!
				status = true
			} else {
				// Invalid token provided
				err = rerrors.NewRefreshError(rerrors.Unauthenticated, errorMessageInvalidToken+val[0])
			}

			// Break out of loop
			break
		}

		// If token not provided, set error
		if (status == false) && (err == nil) {
			err = rerrors.NewRefreshError(rerrors.Unauthenticated, errorMessageTokenNotSupplied)
		}
	}

	if !status {
		var agentResp Response
		handleError(w, agentResp, err, http.StatusUnauthorized)
	}
	return status
}
