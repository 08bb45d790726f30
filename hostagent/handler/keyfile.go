// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package handler

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/model"
	uuid "github.com/satori/go.uuid"
)

const (
	agentKeyFileName = "keyfile.txt" // Disk agent authentication file

	// AgentTokenEnv optionally seeds the access key so remote orchestrators can be
	// configured with a pre-shared token instead of reading the key file
	AgentTokenEnv = "DBREFRESH_AGENT_TOKEN"
)

var (
	keyMutex         sync.Mutex
	agentKeyFilePath string // Path to "keyfile.txt"
	agentKeyGUID     string // Agent authentication key
)

// InitAgentInstanceData generates the agent access key and persists it to the key file
// next to the executable.  The key file is readable only by administrators; see the
// platform specific protectKeyFile implementations.
func InitAgentInstanceData() error {
	keyMutex.Lock()
	defer keyMutex.Unlock()

	exePath, _ := os.Executable()
	agentKeyFilePath = filepath.Join(filepath.Dir(exePath), agentKeyFileName)

	// A pre-shared token wins over a generated one
	if token := os.Getenv(AgentTokenEnv); token != "" {
		agentKeyGUID = token
	} else {
		agentKeyGUID = uuid.NewV4().String()
	}

	if err := ioutil.WriteFile(agentKeyFilePath, []byte(agentKeyGUID), 0600); err != nil {
		return err
	}
	return protectKeyFile(agentKeyFilePath)
}

// RemoveAgentInstanceData removes the key file once the agent has exited
func RemoveAgentInstanceData() {
	keyMutex.Lock()
	defer keyMutex.Unlock()

	if agentKeyFilePath != "" {
		os.Remove(agentKeyFilePath)
	}
	agentKeyGUID = ""
}

func agentAccessKey() string {
	keyMutex.Lock()
	defer keyMutex.Unlock()
	return agentKeyGUID
}

// GetKeyfile retrieves the authentication key file location
// GET /api/v1/keyfile
func GetKeyfile(w http.ResponseWriter, r *http.Request) {
	log.Tracef(">>>>> GetKeyfile called, agentKeyFilePath=%v", agentKeyFilePath)
	defer log.Trace("<<<<< GetKeyfile")

	var agentResp Response
	agentResp.Data = model.KeyFileInfo{Path: agentKeyFilePath}
	json.NewEncoder(w).Encode(agentResp)
}
