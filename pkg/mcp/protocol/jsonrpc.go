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
// Package protocol implements the JSON-RPC 2.0 envelope spoken by the gateway.
// It provides the request/response types, the error taxonomy and request validation.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the required version string for JSON-RPC 2.0
const JSONRPCVersion = "2.0"

// Request represents a validated JSON-RPC 2.0 request
type Request struct {
	JSONRPC string                 `json:"jsonrpc"`          // Must be "2.0"
	ID      *RequestID             `json:"id"`               // String or number, echoed verbatim
	Method  string                 `json:"method"`           // Method name
	Params  map[string]interface{} `json:"params,omitempty"` // Method-specific params
}

// RequestID can be a string or a number. Numbers keep their original
// literal so that 1, 1.0 and 1e3 are echoed exactly as received.
type RequestID struct {
	Str *string
	Num *json.Number
}

// MarshalJSON implements json.Marshaler for RequestID
func (r *RequestID) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	if r.Str != nil {
		return json.Marshal(r.Str)
	}
	if r.Num != nil {
		return []byte(r.Num.String()), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler for RequestID
func (r *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid request ID: %s", data)
		}
		r.Str = &s
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid request ID: %s", data)
	}
	n, ok := v.(json.Number)
	if !ok {
		return fmt.Errorf("invalid request ID: %s", data)
	}
	r.Num = &n
	return nil
}

// IsNull reports whether the ID carries no value.
func (r *RequestID) IsNull() bool {
	return r == nil || (r.Str == nil && r.Num == nil)
}

// String returns a string representation of the RequestID
func (r *RequestID) String() string {
	if r == nil {
		return "null"
	}
	if r.Str != nil {
		return *r.Str
	}
	if r.Num != nil {
		return r.Num.String()
	}
	return "null"
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`          // Always "2.0"
	ID      *RequestID      `json:"id"`               // Matches the request, null if it could not be read
	Result  json.RawMessage `json:"result,omitempty"` // Success result
	Error   *Error          `json:"error,omitempty"`  // Error (mutually exclusive with Result)
}

// NewResponse builds a response envelope. It performs no validation: callers
// pass either a result or an error, never both.
func NewResponse(id *RequestID, result interface{}, rpcErr *Error) *Response {
	resp := &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
	if rpcErr != nil {
		return resp
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		resp.Error = Internal("failed to marshal result", err.Error())
		return resp
	}
	resp.Result = resultBytes
	return resp
}

// NewStringRequestID creates a RequestID from a string
func NewStringRequestID(s string) *RequestID {
	return &RequestID{Str: &s}
}

// NewNumericRequestID creates a RequestID from a number
func NewNumericRequestID(n int64) *RequestID {
	num := json.Number(fmt.Sprintf("%d", n))
	return &RequestID{Num: &num}
}
