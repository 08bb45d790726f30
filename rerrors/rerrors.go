// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package rerrors

import (
	"fmt"
	"strconv"

	log "github.com/hpe-storage/dbrefresh/logger"
)

type RefreshErrorCode uint32

const (
	OK               RefreshErrorCode = 0
	Canceled         RefreshErrorCode = 1
	Unknown          RefreshErrorCode = 2
	InvalidArgument  RefreshErrorCode = 3
	NotFound         RefreshErrorCode = 4
	AlreadyExists    RefreshErrorCode = 5
	PermissionDenied RefreshErrorCode = 6
	Aborted          RefreshErrorCode = 7
	Internal         RefreshErrorCode = 8
	DataLoss         RefreshErrorCode = 9
	Unauthenticated  RefreshErrorCode = 10
	Timeout          RefreshErrorCode = 11
	ConnectionFailed RefreshErrorCode = 12
	StateTransition  RefreshErrorCode = 13
	Replication      RefreshErrorCode = 14
	RemoteExecution  RefreshErrorCode = 15
	_maxCode         RefreshErrorCode = 16
)

const (
	errorMessageInvalidInputParameters = "invalid input parameters"
)

type RefreshError struct {
	Code RefreshErrorCode `json:"code"`
	Text string           `json:"text,omitempty"`
}

// NewRefreshError takes an array of objects and returns a pointer to a RefreshError object.
// The following input parameters, in any order, are supported:
//     RefreshError     - RefreshError object
//     error            - All other error objects
//     RefreshErrorCode - refresh error code
//     string           - refresh error text
// This routine parses the input data to create and return a new RefreshError object
func NewRefreshError(args ...interface{}) *RefreshError {

	// These are the optional parameters we support
	var refreshError *RefreshError
	var otherError *error
	errorCode := _maxCode
	errorMessage := ""

	// Parse the input parameters and populate local variables
	for _, arg := range args {
		switch arg.(type) {
		case RefreshErrorCode:
			errorCode = arg.(RefreshErrorCode)
		case string:
			errorMessage = arg.(string)
		case RefreshError:
			err := arg.(RefreshError)
			refreshError = &err
		case *RefreshError:
			refreshError = arg.(*RefreshError)
		case error:
			err := arg.(error)
			otherError = &err
		}
	}

	// Create a new initial RefreshError object
	err := &RefreshError{Code: _maxCode, Text: ""}

	// Populate the RefreshError Text property
	if refreshError != nil {
		err = refreshError
	} else if otherError != nil {
		err.Text = (*otherError).Error()
	} else if errorMessage != "" {
		err.Text = errorMessage
	}

	// Populate the RefreshError Code property
	if errorCode < _maxCode {
		err.Code = errorCode
	}

	// If neither an error message or an error code were provided, fail with generic error
	if (err.Code == _maxCode) && (err.Text == "") {
		return &RefreshError{Code: Internal, Text: errorMessageInvalidInputParameters}
	}

	// Handle condition where RefreshError Code property is still empty
	if err.Code == _maxCode {
		err.Code = Unknown
	}

	// Handle condition where RefreshError text property is still empty
	if err.Text == "" {
		err.Text = err.Code.String()
	}

	return err
}

func NewRefreshErrorf(c RefreshErrorCode, format string, a ...interface{}) *RefreshError {
	return &RefreshError{Code: c, Text: fmt.Sprintf(format, a...)}
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("status: %d msg: %s", e.Code, e.Text)
}

func (e *RefreshError) LogAndError() RefreshError {
	log.Errorln(e.Error())
	return *e
}

// ErrorCode returns the status code contained in RefreshError
func (e *RefreshError) ErrorCode() RefreshErrorCode {
	if e == nil {
		return OK
	}
	return e.Code
}

// ErrorText returns the text contained in RefreshError
func (e *RefreshError) ErrorText() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// CodeOf returns the RefreshErrorCode carried by err, or Unknown for any
// error that is not a RefreshError.
func CodeOf(err error) RefreshErrorCode {
	if err == nil {
		return OK
	}
	if refreshErr, ok := err.(*RefreshError); ok {
		return refreshErr.ErrorCode()
	}
	return Unknown
}

func (c RefreshErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Canceled:
		return "Canceled"
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case PermissionDenied:
		return "PermissionDenied"
	case Aborted:
		return "Aborted"
	case Internal:
		return "Internal"
	case DataLoss:
		return "DataLoss"
	case Unauthenticated:
		return "Unauthenticated"
	case Timeout:
		return "Timeout"
	case ConnectionFailed:
		return "ConnectionFailed"
	case StateTransition:
		return "StateTransition"
	case Replication:
		return "Replication"
	case RemoteExecution:
		return "RemoteExecution"
	default:
		return "Code(" + strconv.FormatInt(int64(c), 10) + ")"
	}
}
