// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package rerrors

import (
	"errors"
	"testing"
)

func TestNewRefreshError(t *testing.T) {

	var err *RefreshError
	errorMessage := "this is a simple test error message"
	errorTemplate := `Invalid RefreshError, received %v:"%v", expected %v:"%v"`

	err = NewRefreshError(Replication, errorMessage)
	if (err.Code != Replication) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Replication, errorMessage)
	}

	err = NewRefreshError(StateTransition)
	if (err.Code != StateTransition) || (err.Text != err.Code.String()) {
		t.Errorf(errorTemplate, err.Code, err.Text, StateTransition, err.Code.String())
	}

	err = NewRefreshError(errorMessage)
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewRefreshError(errors.New(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewRefreshError(Unauthenticated, errors.New(errorMessage))
	if (err.Code != Unauthenticated) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unauthenticated, errorMessage)
	}

	err = NewRefreshError(NewRefreshError(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewRefreshError(NewRefreshError(errorMessage), RemoteExecution)
	if (err.Code != RemoteExecution) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, RemoteExecution, errorMessage)
	}

	err = NewRefreshError()
	if (err.Code != Internal) || (err.Text != errorMessageInvalidInputParameters) {
		t.Errorf(errorTemplate, err.Code, err.Text, Internal, errorMessageInvalidInputParameters)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RefreshErrorCode
	}{
		{"nil error", nil, OK},
		{"refresh error", NewRefreshError(ConnectionFailed, "array unreachable"), ConnectionFailed},
		{"plain error", errors.New("some failure"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
