// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package connectivity provides a simple JSON-over-HTTP request runner used by the
// disk agent client and the array storage provider.
package connectivity

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	log "github.com/hpe-storage/dbrefresh/logger"
)

const (
	// DefaultTimeout is applied to clients created without an explicit timeout
	DefaultTimeout = 60 * time.Second
)

// Client is a wrapper around http.Client bound to a base URL
type Client struct {
	baseURL string
	http    *http.Client
}

// Request encapsulates a single JSON request/response exchange.  Response and
// ResponseError, when non-nil, receive the decoded body for 2xx and non-2xx
// status codes respectively.
type Request struct {
	Action        string            // HTTP method (GET, PUT, POST, DELETE)
	Path          string            // Path relative to the client's base URL
	Header        map[string]string // Optional headers added to the request
	Payload       interface{}       // Optional object marshaled as the request body
	Response      interface{}       // Decoded response body on success
	ResponseError interface{}       // Decoded response body on error status
}

// NewHTTPClient returns a client bound to the given base URL with the default timeout
func NewHTTPClient(baseURL string) *Client {
	return NewHTTPClientWithTimeout(baseURL, DefaultTimeout)
}

// NewHTTPClientWithTimeout returns a client bound to the given base URL
func NewHTTPClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewHTTPSClientWithTimeout returns a TLS client bound to the given base URL.
// Certificate verification is skipped only when skipCertVerify is set; callers
// opt in explicitly for arrays with self-signed management certificates.
func NewHTTPSClientWithTimeout(baseURL string, skipCertVerify bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		// nolint: gosec
		TLSClientConfig: &tls.Config{InsecureSkipVerify: skipCertVerify},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// DoJSON submits the request and decodes the JSON response into the provided
// Response or ResponseError object.  The HTTP status code is returned along
// with any transport or decode error.
func (client *Client) DoJSON(r *Request) (int, error) {
	log.Tracef(">>>>> DoJSON, action=%v, path=%v", r.Action, r.Path)
	defer log.Trace("<<<<< DoJSON")

	var body io.Reader
	if r.Payload != nil {
		buf, err := json.Marshal(r.Payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(buf)
	}

	url := client.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	req, err := http.NewRequest(r.Action, url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range r.Header {
		req.Header.Set(key, value)
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if (r.Response != nil) && (len(respBody) != 0) {
			if err = json.Unmarshal(respBody, r.Response); err != nil {
				return resp.StatusCode, err
			}
		}
		return resp.StatusCode, nil
	}

	// Decode the error body when the caller provided a receiver for it
	if (r.ResponseError != nil) && (len(respBody) != 0) {
		if err = json.Unmarshal(respBody, r.ResponseError); err == nil {
			return resp.StatusCode, fmt.Errorf("request %v %v failed, status=%v", r.Action, r.Path, resp.StatusCode)
		}
	}
	return resp.StatusCode, fmt.Errorf("request %v %v failed, status=%v, body=%v", r.Action, r.Path, resp.StatusCode, string(respBody))
}
