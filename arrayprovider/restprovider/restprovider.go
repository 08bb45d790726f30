// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package restprovider implements the array StorageProvider over the array's REST
// management endpoint.
package restprovider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/hpe-storage/dbrefresh/arrayprovider"
	"github.com/hpe-storage/dbrefresh/connectivity"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const (
	// REST endpoint API version
	apiVersion = "api/v1"

	tokensURI          = apiVersion + "/tokens"               // api/v1/tokens
	volumesURI         = apiVersion + "/volumes"              // api/v1/volumes
	volumeOverwriteURI = volumesURI + "/%v/actions/overwrite" // api/v1/volumes/{name}/actions/overwrite

	// Session token header expected by the array on authenticated requests
	sessionTokenHeader = "X-Auth-Token"

	// requestTimeout bounds ordinary management calls
	requestTimeout = 60 * time.Second

	// overwriteTimeout bounds the synchronous volume overwrite, which runs for as
	// long as the array needs to copy the data
	overwriteTimeout = 6 * time.Hour
)

const (
	errorMessageLoginFailed     = "unable to authenticate to array %v"
	errorMessageMultipleVolumes = "multiple (%v) volumes matched serial number %v"
	errorMessageNoVolumeMatched = "no volume matched serial number %v"
	errorMessageOverwriteFailed = "overwrite of volume %v from %v failed"
)

// Response object defines the data and/or error returned by the array endpoints
type Response struct {
	Data interface{}           `json:"data,omitempty"`
	Err  *rerrors.RefreshError `json:"errors,omitempty"`
}

// volumeRecord is the generic volume object returned by the array.  Arrays report
// many more properties; only the ones the refresh protocol needs are decoded.
type volumeRecord struct {
	Name         string `mapstructure:"name"`
	SerialNumber string `mapstructure:"serial_number"`
	Size         uint64 `mapstructure:"size"`
}

// sessionRecord is the token object returned by a successful login
type sessionRecord struct {
	SessionToken string `mapstructure:"session_token"`
}

// ArrayStorageProvider implements arrayprovider.StorageProvider over REST
type ArrayStorageProvider struct {
	credentials     *arrayprovider.Credentials
	client          *connectivity.Client
	overwriteClient *connectivity.Client
	header          map[string]string
}

// NewArrayStorageProvider authenticates to the array and returns a live session.
// Certificate verification is skipped only when the credentials opt in.
func NewArrayStorageProvider(credentials *arrayprovider.Credentials) (*ArrayStorageProvider, error) {
	log.Tracef(">>>>> NewArrayStorageProvider called, array=%v, port=%v", credentials.ArrayIP, credentials.Port)
	defer log.Trace("<<<<< NewArrayStorageProvider")

	baseURL := fmt.Sprintf("https://%v:%v", credentials.ArrayIP, credentials.Port)
	if credentials.ContextPath != "" {
		baseURL += credentials.ContextPath
	}

	provider := &ArrayStorageProvider{
		credentials:     credentials,
		client:          connectivity.NewHTTPSClientWithTimeout(baseURL, credentials.SkipCertVerify, requestTimeout),
		overwriteClient: connectivity.NewHTTPSClientWithTimeout(baseURL, credentials.SkipCertVerify, overwriteTimeout),
	}
	if err := provider.login(); err != nil {
		return nil, err
	}
	return provider, nil
}

func (provider *ArrayStorageProvider) login() error {
	var data interface{}
	arrayResp := Response{Data: &data}
	payload := map[string]string{
		"username": provider.credentials.Username,
		"password": provider.credentials.Password,
	}

	code, err := provider.client.DoJSON(&connectivity.Request{
		Action:        "POST",
		Path:          tokensURI,
		Payload:       payload,
		Response:      &arrayResp,
		ResponseError: &arrayResp,
	})
	if err != nil {
		if (code == http.StatusUnauthorized) || (code == http.StatusForbidden) {
			return rerrors.NewRefreshError(rerrors.Unauthenticated, err)
		}
		return rerrors.NewRefreshErrorf(rerrors.ConnectionFailed, errorMessageLoginFailed+": %v", provider.credentials.ArrayIP, err)
	}

	var session sessionRecord
	if err := mapstructure.Decode(data, &session); err != nil || session.SessionToken == "" {
		return rerrors.NewRefreshErrorf(rerrors.ConnectionFailed, errorMessageLoginFailed, provider.credentials.ArrayIP)
	}
	provider.header = map[string]string{sessionTokenHeader: session.SessionToken}
	return nil
}

// GetVolumes enumerates all volumes on the array
func (provider *ArrayStorageProvider) GetVolumes() ([]*model.StorageVolume, error) {
	log.Trace(">>>>> GetVolumes called")
	defer log.Trace("<<<<< GetVolumes")

	var data []map[string]interface{}
	arrayResp := Response{Data: &data}
	if _, err := provider.client.DoJSON(&connectivity.Request{
		Action:        "GET",
		Path:          volumesURI,
		Header:        provider.header,
		Response:      &arrayResp,
		ResponseError: &arrayResp,
	}); err != nil {
		if arrayResp.Err != nil {
			return nil, arrayResp.Err
		}
		return nil, rerrors.NewRefreshError(rerrors.ConnectionFailed, err)
	}

	volumes := make([]*model.StorageVolume, 0, len(data))
	for _, record := range data {
		var volume volumeRecord
		if err := mapstructure.Decode(record, &volume); err != nil {
			return nil, rerrors.NewRefreshError(rerrors.Internal, err)
		}
		volumes = append(volumes, &model.StorageVolume{
			Name:         volume.Name,
			SerialNumber: volume.SerialNumber,
			Size:         volume.Size,
		})
	}
	return volumes, nil
}

// GetVolumeBySerial queries all volumes and selects the one whose serial number
// matches exactly.  Zero or multiple matches is an error, not a default.
func (provider *ArrayStorageProvider) GetVolumeBySerial(serialNumber string) (*model.StorageVolume, error) {
	log.Tracef(">>>>> GetVolumeBySerial called, serialNumber=%v", serialNumber)
	defer log.Trace("<<<<< GetVolumeBySerial")

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
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageNoVolumeMatched, serialNumber)
	}
	if len(matched) > 1 {
		return nil, rerrors.NewRefreshErrorf(rerrors.NotFound, errorMessageMultipleVolumes, len(matched), serialNumber)
	}
	return matched[0], nil
}

// OverwriteVolume performs the array-side full overwrite of the target volume from
// the source volume.  The call blocks until the array reports completion.
func (provider *ArrayStorageProvider) OverwriteVolume(targetName, sourceName string) error {
	log.Tracef(">>>>> OverwriteVolume called, target=%v, source=%v", targetName, sourceName)
	defer log.Trace("<<<<< OverwriteVolume")

	arrayResp := Response{}
	payload := map[string]string{"source_volume": sourceName}
	if _, err := provider.overwriteClient.DoJSON(&connectivity.Request{
		Action:        "POST",
		Path:          fmt.Sprintf(volumeOverwriteURI, targetName),
		Header:        provider.header,
		Payload:       payload,
		Response:      &arrayResp,
		ResponseError: &arrayResp,
	}); err != nil {
		if arrayResp.Err != nil {
			return rerrors.NewRefreshError(rerrors.Replication, arrayResp.Err.ErrorText())
		}
		return rerrors.NewRefreshErrorf(rerrors.Replication, errorMessageOverwriteFailed+": %v", targetName, sourceName, err)
	}
	return nil
}

// Close releases the array session
func (provider *ArrayStorageProvider) Close() error {
	log.Trace(">>>>> Close called")
	defer log.Trace("<<<<< Close")

	// Best effort logout; an expired token is not worth failing a refresh over
	if _, err := provider.client.DoJSON(&connectivity.Request{
		Action: "DELETE",
		Path:   tokensURI,
		Header: provider.header,
	}); err != nil {
		log.Warnf("array logout failed, err=%v", err)
	}
	provider.header = nil
	return nil
}
