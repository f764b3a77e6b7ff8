/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errs

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

const (
	//export steps
	READ_ROWS_STEP   = "read_rows"
	ENCODE_ROWS_STEP = "encode_rows"
	WRITE_FILE_STEP  = "write_file"
)

// SchemaFetchError covers network/HTTP failures and malformed schema bodies.
type SchemaFetchError struct {
	URL string
	err error
}

func (e *SchemaFetchError) Error() string {
	return fmt.Sprintf("fetch schema from %s: %s", e.URL, e.err.Error())
}

func (e *SchemaFetchError) Unwrap() error {
	return e.err
}

func NewSchemaFetchError(url string, err error) *SchemaFetchError {
	return &SchemaFetchError{URL: url, err: err}
}

// ClassificationError is returned for structurally invalid table entries.
type ClassificationError struct {
	Index  int // position of the offending entry, -1 when the payload itself is invalid
	Reason string
}

func (e *ClassificationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid schema format: %s", e.Reason)
	}
	return fmt.Sprintf("invalid schema format: tables[%d]: %s", e.Index, e.Reason)
}

func NewClassificationError(index int, format string, args ...interface{}) *ClassificationError {
	return &ClassificationError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

// ConnectError is an auth or handshake failure before any data was received.
type ConnectError struct {
	err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("error while connecting: %s", e.err.Error())
}

func (e *ConnectError) Unwrap() error {
	return e.err
}

// Clean reports whether the failure was a benign close during the handshake.
func (e *ConnectError) Clean() bool {
	return IsClean(e.err)
}

func NewConnectError(err error) *ConnectError {
	return &ConnectError{err: err}
}

// SubscriptionError is the server rejecting one of the subscription queries.
type SubscriptionError struct {
	Table   string
	Message string
}

func (e *SubscriptionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("subscription rejected: %s", e.Message)
	}
	return fmt.Sprintf("subscription rejected for table %q: %s", e.Table, e.Message)
}

func NewSubscriptionError(table string, message string) *SubscriptionError {
	return &SubscriptionError{Table: table, Message: message}
}

// ExportError is a cache-read, encode or I/O failure for one table.
type ExportError struct {
	Table      string
	FailedStep string
	err        error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export of table %q failed at step '%s': %s", e.Table, e.FailedStep, e.err.Error())
}

func (e *ExportError) Unwrap() error {
	return e.err
}

func NewExportError(table string, failedStep string, err error) *ExportError {
	return &ExportError{Table: table, FailedStep: failedStep, err: err}
}

// UnexpectedDisconnectError is a connection drop before the export completed.
type UnexpectedDisconnectError struct {
	State string
	err   error
}

func (e *UnexpectedDisconnectError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("disconnected unexpectedly while %s", e.State)
	}
	return fmt.Sprintf("disconnected abnormally while %s: %s", e.State, e.err.Error())
}

func (e *UnexpectedDisconnectError) Unwrap() error {
	return e.err
}

func NewUnexpectedDisconnectError(state string, err error) *UnexpectedDisconnectError {
	return &UnexpectedDisconnectError{State: state, err: err}
}

// IsClean reports whether err is absent or a normal websocket close.
func IsClean(err error) bool {
	if err == nil {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
