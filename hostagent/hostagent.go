// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package hostagent runs the per-host disk agent consumed by the refresh
// orchestrator.  The agent exposes disk lookup and disk offline/online state
// changes over an authenticated REST endpoint.
package hostagent

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hpe-storage/dbrefresh/hostagent/handler"
	log "github.com/hpe-storage/dbrefresh/logger"
	"github.com/hpe-storage/dbrefresh/util"
)

const (
	// DefaultPort is the TCP port the agent listens on unless configured otherwise
	DefaultPort = 6250
)

var (
	agentLock     sync.Mutex   // agent lock
	agentListener net.Listener // agent TCP listener
	agentRunning  int32        // 1 if the agent server is active, else 0
)

// Run will invoke a new disk agent listener on the given port.  A config file path may
// be supplied; the agent watches it and re-reads the log level when it changes.
func Run(port int, configFile string) (err error) {
	// acquire lock to avoid multiple agent servers
	agentLock.Lock()
	defer agentLock.Unlock()

	// check if the agent is already running
	swapped := atomic.CompareAndSwapInt32(&agentRunning, 0, 1)
	if !swapped {
		// return err as nil to indicate the agent is already running for current process
		return nil
	}

	if configFile != "" {
		if err := watchConfig(configFile); err != nil {
			log.Warnf("unable to watch config file %v, err=%v", configFile, err)
		}
	}

	agentResult := make(chan error)
	// start agent server
	go startAgent(port, agentResult)
	// wait for the response on channel
	err = <-agentResult

	return err
}

// This function will invoke a new agent listener on the given TCP port.
// NOTE: invoke this function as go routine as it will block on the listener
func startAgent(port int, result chan error) {
	log.Trace(">>>>> startAgent")
	defer log.Trace("<<<<< startAgent")

	var err error
	// create Listener object
	agentListener, err = net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		log.Error("listen error, unable to create disk agent server ", err.Error())
		result <- err
	} else {
		// Generate the access key and persist it for local administrators
		err = handler.InitAgentInstanceData()
		if err != nil {
			log.Error("InitAgentInstanceData error, unable to create disk agent server ", err.Error())
			agentListener.Close()
			result <- err
		} else {
			// Allocate our mux.Router object
			router := NewRouter()

			// indicate on channel before we block on listener
			result <- nil
			err = http.Serve(agentListener, router)
			if err != nil {
				log.Tracef("exiting disk agent server, err=%v", err.Error())
			}

			// Remove the key file now that the agent has exited
			handler.RemoveAgentInstanceData()
		}
	}

	// Before exiting thread, clear agent running flag
	atomic.StoreInt32(&agentRunning, 0)
}

// Stop will stop the agent listener
func Stop() error {
	log.Trace(">>>>> Stop")
	defer log.Trace("<<<<< Stop")

	// Block any new agent creation request while we're in the middle of trying to close
	// out any existing agent server.
	agentLock.Lock()
	defer agentLock.Unlock()

	// stop the listener
	if agentListener != nil {
		err := agentListener.Close()
		if err != nil {
			log.Error("unable to close disk agent listener " + agentListener.Addr().String())
		} else {
			// Wait up to 2 seconds for the agent thread to exit
			for i := 0; (i < 2*10) && (atomic.LoadInt32(&agentRunning) == 1); i++ {
				time.Sleep(100 * time.Millisecond)
			}
		}
		agentListener = nil
	}
	return nil
}

// watchConfig re-reads the agent config file whenever it changes so operators can raise
// the log level on a live agent.
func watchConfig(configFile string) error {
	watcher, err := util.InitializeWatcher(func() {
		params := loadLogParams(configFile)
		if params != nil {
			log.InitLogging("", params, true, false)
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.AddWatchList([]string{configFile}); err != nil {
		return err
	}
	go watcher.StartWatcher()
	return nil
}
