// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package restprovider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hpe-storage/dbrefresh/arrayprovider"
	"github.com/hpe-storage/dbrefresh/connectivity"
	"github.com/hpe-storage/dbrefresh/rerrors"
)

const testSessionToken = "session-token-1234"

// newFakeArray starts an httptest server that behaves like an array management
// endpoint with the given volumes.  It records overwrite requests.
func newFakeArray(t *testing.T, volumes []map[string]interface{}) (*httptest.Server, *[]string) {
	var overwrites []string

	mux := http.NewServeMux()
	mux.HandleFunc("/"+tokensURI, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "DELETE" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["username"] != "admin" || payload["password"] != "admin" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(Response{Err: rerrors.NewRefreshErrorf(rerrors.Unauthenticated, "bad credentials")})
			return
		}
		_ = json.NewEncoder(w).Encode(Response{Data: map[string]interface{}{"session_token": testSessionToken}})
	})
	mux.HandleFunc("/"+volumesURI, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(sessionTokenHeader) != testSessionToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(Response{Data: volumes})
	})
	mux.HandleFunc("/"+apiVersion+"/volumes/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(sessionTokenHeader) != testSessionToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/actions/overwrite") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		target := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"+apiVersion+"/volumes/"), "/actions/overwrite")
		target, _ = url.PathUnescape(target)
		if target == "broken-vol" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(Response{Err: rerrors.NewRefreshErrorf(rerrors.Internal, "array fault")})
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		overwrites = append(overwrites, target+"<-"+payload["source_volume"])
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &overwrites
}

// newTestProvider logs in against the fake array over plain HTTP
func newTestProvider(t *testing.T, server *httptest.Server, username, password string) (*ArrayStorageProvider, error) {
	provider := &ArrayStorageProvider{
		credentials:     &arrayprovider.Credentials{Username: username, Password: password, ArrayIP: server.URL},
		client:          connectivity.NewHTTPClientWithTimeout(server.URL, 10*time.Second),
		overwriteClient: connectivity.NewHTTPClientWithTimeout(server.URL, 10*time.Second),
	}
	if err := provider.login(); err != nil {
		return nil, err
	}
	return provider, nil
}

func testVolumes() []map[string]interface{} {
	return []map[string]interface{}{
		{"name": "src-vol", "serial_number": "SN-A", "size": float64(1 << 30), "pool": "default"},
		{"name": "dst-vol", "serial_number": "SN-B", "size": float64(1 << 30), "pool": "default"},
		{"name": "dup-vol", "serial_number": "SN-DUP", "size": float64(1 << 20)},
		{"name": "dup-vol-2", "serial_number": "SN-DUP", "size": float64(1 << 20)},
	}
}

func TestLogin(t *testing.T) {
	server, _ := newFakeArray(t, testVolumes())

	provider, err := newTestProvider(t, server, "admin", "admin")
	assert.Nil(t, err)
	assert.Equal(t, testSessionToken, provider.header[sessionTokenHeader])

	_, err = newTestProvider(t, server, "admin", "wrong")
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.Unauthenticated, rerrors.CodeOf(err))
}

func TestGetVolumes(t *testing.T) {
	server, _ := newFakeArray(t, testVolumes())
	provider, err := newTestProvider(t, server, "admin", "admin")
	assert.Nil(t, err)

	volumes, err := provider.GetVolumes()
	assert.Nil(t, err)
	assert.Len(t, volumes, 4)
	assert.Equal(t, "src-vol", volumes[0].Name)
	assert.Equal(t, "SN-A", volumes[0].SerialNumber)
	assert.Equal(t, uint64(1<<30), volumes[0].Size)
}

func TestGetVolumeBySerial(t *testing.T) {
	server, _ := newFakeArray(t, testVolumes())
	provider, err := newTestProvider(t, server, "admin", "admin")
	assert.Nil(t, err)

	// Exactly one match
	volume, err := provider.GetVolumeBySerial("SN-B")
	assert.Nil(t, err)
	assert.Equal(t, "dst-vol", volume.Name)

	// No match
	_, err = provider.GetVolumeBySerial("SN-MISSING")
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.NotFound, rerrors.CodeOf(err))

	// Multiple matches must be rejected, never resolved by picking one
	_, err = provider.GetVolumeBySerial("SN-DUP")
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.NotFound, rerrors.CodeOf(err))
}

func TestOverwriteVolume(t *testing.T) {
	server, overwrites := newFakeArray(t, testVolumes())
	provider, err := newTestProvider(t, server, "admin", "admin")
	assert.Nil(t, err)

	err = provider.OverwriteVolume("dst-vol", "src-vol")
	assert.Nil(t, err)
	assert.Equal(t, []string{"dst-vol<-src-vol"}, *overwrites)

	// Array-side failure surfaces as a replication error
	err = provider.OverwriteVolume("broken-vol", "src-vol")
	assert.NotNil(t, err)
	assert.Equal(t, rerrors.Replication, rerrors.CodeOf(err))
	assert.Len(t, *overwrites, 1)
}
