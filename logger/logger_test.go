// Copyright 2021 Hewlett Packard Enterprise Development LP
package logger

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func getLogFile() string {
	// get temp location for logging
	return filepath.Join(os.TempDir(), "dbrefresh-test.log")
}

func logAllLevels(testName string) {
	log.Tracef("%s:%s", testName, log.TraceLevel.String())
	log.Debugf("%s:%s", testName, log.DebugLevel.String())
	log.Infof("%s:%s", testName, log.InfoLevel.String())
	log.Errorf("%s:%s", testName, log.ErrorLevel.String())
	log.Warnf("%s:%s", testName, log.WarnLevel.String())
}

func testContains(t *testing.T, logFile string, testName string, level string, shouldContain bool) {
	b, err := ioutil.ReadFile(logFile)
	assert.Equal(t, err, nil)

	switch level {
	case log.TraceLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.TraceLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.DebugLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.DebugLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.InfoLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.InfoLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.WarnLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.WarnLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.ErrorLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.ErrorLevel.String())))
	}
}

func TestInitLogging(t *testing.T) {
	logFile := getLogFile()

	// cleanup log file before test
	os.RemoveAll(logFile)

	// Test1: log to stdout only, no log file created
	InitLogging("", nil, true, false)
	testName := "test_param_override_stdout_only"
	logAllLevels(testName)
	_, err := os.Stat(logFile)
	assert.Equal(t, true, os.IsNotExist(err))

	// Test2: initialize logger with nil params to verify default levels
	InitLogging(logFile, nil, false, false)

	// verify default info level setting with no params
	assert.Equal(t, DefaultLogLevel, log.GetLevel().String())

	// verify logging with info level and below
	testName = "test_default_info_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "trace", false)
	testContains(t, logFile, testName, "debug", false)

	// Test3: initialize logger with override of trace level
	InitLogging(logFile, &LogParams{Level: "trace"}, false, false)

	// verify trace level setting with param override
	assert.Equal(t, log.TraceLevel.String(), log.GetLevel().String())

	testName = "test_param_override_trace_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "trace", true)
	testContains(t, logFile, testName, "debug", true)

	// Test4: initialize logger with env vars for debug level
	os.Setenv("LOG_LEVEL", "debug")
	InitLogging(logFile, nil, false, false)
	testName = "test_env_debug_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "debug", true)
	testContains(t, logFile, testName, "trace", false)

	// Test5: initialize logger with invalid log format through env
	os.Setenv("LOG_FORMAT", "yaml")
	InitLogging(logFile, nil, false, false)

	// verify log format is set to default value of text
	assert.Equal(t, logParams.GetLogFormat(), DefaultLogFormat)

	// Test6: initialize logger with invalid log files limit through config
	InitLogging(logFile, &LogParams{MaxFiles: 1000}, false, false)

	// verify log files is set to default value of 10
	assert.Equal(t, logParams.GetMaxFiles(), DefaultMaxLogFiles)

	// Test7: env variables win even when params is not nil
	os.Setenv("LOG_LEVEL", "info")
	InitLogging(logFile, &LogParams{Level: "trace"}, false, false)

	testName = "test_env_override_info_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "debug", false)
	testContains(t, logFile, testName, "trace", false)

	// cleanup log file and env after test
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOG_FORMAT")
	os.RemoveAll(logFile)
}

func TestScrubber(t *testing.T) {
	// Array credentials and SQL connection strings must never reach the logs
	masked := Scrubber([]string{"sqlcmd", "-U", "sa", "-P", "Password123"})
	assert.Equal(t, []string{"**********"}, masked)

	clean := []string{"Get-Disk", "-Number", "2"}
	assert.Equal(t, clean, Scrubber(clean))

	m := MapScrubber(map[string]string{
		"arrayIp":  "10.0.0.5",
		"username": "admin",
		"password": "admin",
	})
	assert.Equal(t, "10.0.0.5", m["arrayIp"])
	assert.Equal(t, "**********", m["username"])
	assert.Equal(t, "**********", m["password"])
}
