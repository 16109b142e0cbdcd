// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int             `json:"code"`           // Error code
	Message string          `json:"message"`        // Human-readable message
	Data    json.RawMessage `json:"data,omitempty"` // Additional error info
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700 // Invalid JSON
	InvalidRequest = -32600 // Invalid JSON-RPC
	MethodNotFound = -32601 // Method doesn't exist
	InvalidParams  = -32602 // Invalid parameters
	InternalError  = -32603 // Internal error
)

// FieldViolation describes one problem found while validating a request.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewError creates a standard JSON-RPC error
func NewError(code int, message string, data interface{}) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if data != nil {
		dataJSON, err := json.Marshal(data)
		if err == nil {
			e.Data = dataJSON
		}
	}
	return e
}

// Implement error interface for Error
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// NewParseError reports a payload that is not a JSON object.
func NewParseError(detail string) *Error {
	var data interface{}
	if detail != "" {
		data = detail
	}
	return NewError(ParseError, "Parse error", data)
}

// NewInvalidRequest reports a request with missing or mistyped fields.
func NewInvalidRequest(violations []FieldViolation) *Error {
	var data interface{}
	if len(violations) > 0 {
		data = map[string]interface{}{"violations": violations}
	}
	return NewError(InvalidRequest, "Invalid Request", data)
}

// NewMethodNotFound reports a call to a method nobody registered.
func NewMethodNotFound(method string) *Error {
	return NewError(MethodNotFound, fmt.Sprintf("Method not found: %s", method), map[string]string{"method": method})
}

// NewInvalidParams reports params rejected by a method.
func NewInvalidParams(message string, data interface{}) *Error {
	if message == "" {
		message = "Invalid params"
	}
	return NewError(InvalidParams, message, data)
}

// Internal reports an unexpected server-side failure.
func Internal(message string, data interface{}) *Error {
	if message == "" {
		message = "Internal error"
	}
	return NewError(InternalError, message, data)
}

// FromError normalizes any error into a protocol error. Typed protocol errors
// anywhere in the chain are returned as-is, everything else becomes an
// internal error carrying the original message as data.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return Internal("Internal error", err.Error())
}
