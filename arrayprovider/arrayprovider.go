// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

// Package arrayprovider defines the storage array session consumed by the refresh
// orchestrator: volume enumeration, serial-number resolution and the volume
// overwrite operation.
package arrayprovider

import (
	"fmt"
	"io/ioutil"
	"strconv"

	"github.com/hpe-storage/dbrefresh/model"
	yaml "gopkg.in/yaml.v2"
)

const (
	usernameKey       = "username"
	passwordKey       = "password"
	arrayIPKey        = "arrayIp"
	portKey           = "port"
	contextPathKey    = "contextPath"
	skipCertVerifyKey = "skipCertVerify"
)

// StorageProvider is an authenticated session with one storage array
type StorageProvider interface {
	// GetVolumes enumerates all volumes on the array
	GetVolumes() ([]*model.StorageVolume, error)

	// GetVolumeBySerial returns the one volume whose serial number matches exactly.
	// Zero or multiple matches is an error, never a default.
	GetVolumeBySerial(serialNumber string) (*model.StorageVolume, error)

	// OverwriteVolume replaces the target volume's contents with the source
	// volume's, synchronously; it returns once the array reports completion
	OverwriteVolume(targetName, sourceName string) error

	// Close releases the array session
	Close() error
}

// Credentials defines the storage array access information
type Credentials struct {
	Username       string
	Password       string
	ArrayIP        string
	Port           int
	ContextPath    string
	SkipCertVerify bool
}

// CreateCredentials validates the secrets map and returns a Credentials object
func CreateCredentials(secrets map[string]string) (*Credentials, error) {
	credentials := &Credentials{}
	for key, value := range secrets {
		switch key {
		case usernameKey:
			credentials.Username = value
		case passwordKey:
			credentials.Password = value
		case arrayIPKey:
			credentials.ArrayIP = value
		case contextPathKey:
			credentials.ContextPath = value
		case portKey:
			port, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port %v specified, err=%v", value, err)
			}
			credentials.Port = int(port)
		case skipCertVerifyKey:
			skip, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("invalid %v value %v specified, err=%v", skipCertVerifyKey, value, err)
			}
			credentials.SkipCertVerify = skip
		}
	}

	if credentials.Username == "" || credentials.Password == "" {
		return nil, fmt.Errorf("missing username or password in the secrets")
	}
	if credentials.ArrayIP == "" {
		return nil, fmt.Errorf("missing array IP address in the secrets")
	}
	if credentials.Port == 0 {
		return nil, fmt.Errorf("missing port in the secrets")
	}
	return credentials, nil
}

// ArrayConfig is one named array entry in the operator's array config file.
// Certificate validation is skipped only on explicit opt-in.
type ArrayConfig struct {
	Name           string `yaml:"name"`
	Endpoint       string `yaml:"endpoint"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ContextPath    string `yaml:"contextPath,omitempty"`
	SkipCertVerify bool   `yaml:"skipCertificateValidation,omitempty"`
}

// LoadArrayConfigs reads the YAML array config file
func LoadArrayConfigs(path string) ([]ArrayConfig, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var configs []ArrayConfig
	if err := yaml.Unmarshal(buf, &configs); err != nil {
		return nil, fmt.Errorf("unable to parse array config %v, err=%v", path, err)
	}
	return configs, nil
}

// FindArrayConfig returns the entry matching the given name or endpoint
func FindArrayConfig(configs []ArrayConfig, nameOrEndpoint string) (*ArrayConfig, error) {
	for i := range configs {
		if (configs[i].Name == nameOrEndpoint) || (configs[i].Endpoint == nameOrEndpoint) {
			return &configs[i], nil
		}
	}
	return nil, fmt.Errorf("array %v not found in config", nameOrEndpoint)
}

// Secrets converts the config entry into the secrets map CreateCredentials expects
func (config *ArrayConfig) Secrets() map[string]string {
	secrets := map[string]string{
		usernameKey: config.Username,
		passwordKey: config.Password,
		arrayIPKey:  config.Endpoint,
		portKey:     strconv.Itoa(config.Port),
	}
	if config.ContextPath != "" {
		secrets[contextPathKey] = config.ContextPath
	}
	if config.SkipCertVerify {
		secrets[skipCertVerifyKey] = "true"
	}
	return secrets
}
