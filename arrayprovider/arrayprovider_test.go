// Copyright 2021 Hewlett Packard Enterprise Development LP

package arrayprovider

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCreateCredentials(t *testing.T) {
	type args struct {
		secrets map[string]string
	}

	// Valid params
	map1 := map[string]string{
		usernameKey: "admin",
		passwordKey: "admin",
		arrayIPKey:  "10.0.0.5",
		portKey:     "443",
	}
	cred1 := &Credentials{
		Username: "admin",
		Password: "admin",
		ArrayIP:  "10.0.0.5",
		Port:     443,
	}

	// Valid params with self-signed certificate opt-in
	map2 := map[string]string{
		usernameKey:       "admin",
		passwordKey:       "admin",
		arrayIPKey:        "10.0.0.5",
		portKey:           "443",
		contextPathKey:    "/api/v1",
		skipCertVerifyKey: "true",
	}
	cred2 := &Credentials{
		Username:       "admin",
		Password:       "admin",
		ArrayIP:        "10.0.0.5",
		Port:           443,
		ContextPath:    "/api/v1",
		SkipCertVerify: true,
	}

	// Invalid params (Missing Port)
	map3 := map[string]string{
		usernameKey: "admin",
		passwordKey: "admin",
		arrayIPKey:  "10.0.0.5",
	}

	// Invalid params (Missing array IP)
	map4 := map[string]string{
		usernameKey: "admin",
		passwordKey: "admin",
		portKey:     "443",
	}

	// Invalid params (bad skipCertVerify value)
	map5 := map[string]string{
		usernameKey:       "admin",
		passwordKey:       "admin",
		arrayIPKey:        "10.0.0.5",
		portKey:           "443",
		skipCertVerifyKey: "yes please",
	}

	tests := []struct {
		name    string
		args    args
		want    *Credentials
		wantErr bool
	}{
		{"Test valid args", args{map1}, cred1, false},
		{"Test valid args with cert opt-in", args{map2}, cred2, false},
		{"Test missing port", args{map3}, nil, true},
		{"Test missing array IP", args{map4}, nil, true},
		{"Test invalid skipCertVerify", args{map5}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateCredentials(tt.args.secrets)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateCredentials() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CreateCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadArrayConfigs(t *testing.T) {
	configYAML := `
- name: lab-array
  endpoint: 10.0.0.5
  port: 443
  username: admin
  password: admin
  skipCertificateValidation: true
- name: prod-array
  endpoint: array.corp.example.net
  port: 443
  username: refresh-svc
  password: notsecret
`
	path := filepath.Join(os.TempDir(), "dbrefresh-arrays-test.yaml")
	if err := ioutil.WriteFile(path, []byte(configYAML), 0600); err != nil {
		t.Fatalf("unable to write test config: %v", err)
	}
	defer os.Remove(path)

	configs, err := LoadArrayConfigs(path)
	if err != nil {
		t.Fatalf("LoadArrayConfigs() error = %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("LoadArrayConfigs() returned %v entries, want 2", len(configs))
	}

	config, err := FindArrayConfig(configs, "lab-array")
	if err != nil {
		t.Fatalf("FindArrayConfig() error = %v", err)
	}
	if !config.SkipCertVerify {
		t.Error("expected skipCertificateValidation to be set for lab-array")
	}

	// Round trip through the secrets map
	credentials, err := CreateCredentials(config.Secrets())
	if err != nil {
		t.Fatalf("CreateCredentials() error = %v", err)
	}
	if credentials.ArrayIP != "10.0.0.5" || credentials.Port != 443 || !credentials.SkipCertVerify {
		t.Errorf("unexpected credentials %+v", credentials)
	}

	if _, err := FindArrayConfig(configs, "missing-array"); err == nil {
		t.Error("FindArrayConfig() expected error for unknown array")
	}
}
