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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		id       *RequestID
		expected string
	}{
		{
			name:     "string ID",
			id:       NewStringRequestID("test-123"),
			expected: `"test-123"`,
		},
		{
			name:     "number ID",
			id:       NewNumericRequestID(42),
			expected: `42`,
		},
		{
			name:     "nil ID",
			id:       nil,
			expected: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.id)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestRequestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantOut string
		isNull  bool
	}{
		{name: "string", input: `"abc"`, wantOut: `"abc"`},
		{name: "integer", input: `7`, wantOut: `7`},
		{name: "float keeps literal", input: `1.50`, wantOut: `1.50`},
		{name: "exponent keeps literal", input: `1e3`, wantOut: `1e3`},
		{name: "null", input: `null`, isNull: true},
		{name: "bool", input: `true`, wantErr: true},
		{name: "object", input: `{"a":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RequestID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.isNull {
				assert.True(t, id.IsNull())
				return
			}
			out, err := json.Marshal(&id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, string(out))
		})
	}
}

func TestRequestID_String(t *testing.T) {
	assert.Equal(t, "null", (*RequestID)(nil).String())
	assert.Equal(t, "abc", NewStringRequestID("abc").String())
	assert.Equal(t, "12", NewNumericRequestID(12).String())
}

func TestNewResponse_Result(t *testing.T) {
	resp := NewResponse(NewNumericRequestID(1), map[string]bool{"pong": true}, nil)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"pong":true}}`, string(data))
}

func TestNewResponse_NilResultIsExplicitNull(t *testing.T) {
	resp := NewResponse(NewStringRequestID("x"), nil, nil)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"x","result":null}`, string(data))
}

func TestNewResponse_Error(t *testing.T) {
	resp := NewResponse(nil, nil, NewMethodNotFound("nope"))

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["id"])
	assert.NotContains(t, decoded, "result")
	errObj := decoded["error"].(map[string]interface{})
	assert.Equal(t, float64(MethodNotFound), errObj["code"])
}

func TestNewResponse_UnmarshalableResult(t *testing.T) {
	resp := NewResponse(NewNumericRequestID(3), make(chan int), nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
	assert.Empty(t, resp.Result)
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "JSON-RPC error -32601: Method not found: x (data: {\"method\":\"x\"})", NewMethodNotFound("x").Error())
	assert.Equal(t, "JSON-RPC error -32603: boom", Internal("boom", nil).Error())
}

func TestFromError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FromError(nil))
	})

	t.Run("typed error passes through", func(t *testing.T) {
		orig := NewInvalidParams("bad bbox", map[string]string{"field": "bbox"})
		got := FromError(fmt.Errorf("search: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := FromError(errors.New("upstream exploded"))
		assert.Equal(t, InternalError, got.Code)
		assert.Equal(t, "Internal error", got.Message)
		assert.JSONEq(t, `"upstream exploded"`, string(got.Data))
	})
}
