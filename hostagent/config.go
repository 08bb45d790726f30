// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package hostagent

import (
	"encoding/json"
	"io/ioutil"

	log "github.com/hpe-storage/dbrefresh/logger"
)

// Config holds the optional disk agent settings read from the agent config file
type Config struct {
	Port     int    `json:"port,omitempty"`     // TCP port to listen on
	LogLevel string `json:"logLevel,omitempty"` // trace, debug, info, warn, error
	LogFile  string `json:"logFile,omitempty"`  // Log file location
}

// LoadConfig reads the agent config file.  A missing file is not an error; all
// settings have defaults.
func LoadConfig(path string) (*Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	if err := json.Unmarshal(buf, config); err != nil {
		return nil, err
	}
	return config, nil
}

func loadLogParams(configFile string) *log.LogParams {
	config, err := LoadConfig(configFile)
	if err != nil {
		log.Warnf("unable to read config file %v, err=%v", configFile, err)
		return nil
	}
	return &log.LogParams{Level: config.LogLevel, File: config.LogFile}
}
