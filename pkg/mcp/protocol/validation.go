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
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult is the outcome of validating a raw payload. Exactly one of
// Request and Err is set. ID holds whatever id could be read from the payload,
// even when validation failed, so error responses can still be correlated.
type ValidationResult struct {
	Request *Request
	ID      *RequestID
	Err     *Error
}

// OK reports whether the payload was a valid request.
func (v ValidationResult) OK() bool {
	return v.Err == nil && v.Request != nil
}

// Validate parses and type-checks a raw payload.
func Validate(raw []byte) ValidationResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ValidationResult{Err: NewParseError(err.Error())}
	}
	if fields == nil {
		return ValidationResult{Err: NewParseError("payload must be a JSON object")}
	}

	var (
		result     ValidationResult
		violations []FieldViolation
		req        = &Request{}
	)

	// Salvage the id first so every later failure can echo it.
	if idRaw, ok := fields["id"]; !ok {
		violations = append(violations, FieldViolation{Field: "id", Message: "id is required"})
	} else {
		var id RequestID
		if err := json.Unmarshal(idRaw, &id); err != nil || id.IsNull() {
			violations = append(violations, FieldViolation{Field: "id", Message: "id must be a string or a number"})
		} else {
			result.ID = &id
			req.ID = &id
		}
	}

	if versionRaw, ok := fields["jsonrpc"]; !ok {
		violations = append(violations, FieldViolation{Field: "jsonrpc", Message: "jsonrpc is required"})
	} else if err := json.Unmarshal(versionRaw, &req.JSONRPC); err != nil || req.JSONRPC != JSONRPCVersion {
		violations = append(violations, FieldViolation{
			Field:   "jsonrpc",
			Message: fmt.Sprintf("jsonrpc must be %q", JSONRPCVersion),
		})
	}

	if methodRaw, ok := fields["method"]; !ok {
		violations = append(violations, FieldViolation{Field: "method", Message: "method is required"})
	} else if err := json.Unmarshal(methodRaw, &req.Method); err != nil {
		violations = append(violations, FieldViolation{Field: "method", Message: "method must be a string"})
	} else if req.Method == "" {
		violations = append(violations, FieldViolation{Field: "method", Message: "method must not be empty"})
	}

	if paramsRaw, ok := fields["params"]; ok && string(paramsRaw) != "null" {
		if err := json.Unmarshal(paramsRaw, &req.Params); err != nil {
			violations = append(violations, FieldViolation{Field: "params", Message: "params must be an object"})
		}
	}

	if len(violations) > 0 {
		result.Err = NewInvalidRequest(violations)
		return result
	}

	result.Request = req
	return result
}

// SalvageID extracts the request id from a payload without validating the rest.
// It returns nil when no usable id is present.
func SalvageID(raw []byte) *RequestID {
	var envelope struct {
		ID *RequestID `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.ID.IsNull() {
		return nil
	}
	return envelope.ID
}

// CompileSchema compiles a JSON Schema document. A nil or empty schema
// compiles to nil, meaning "accept anything".
func CompileSchema(schema map[string]interface{}) (*gojsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// ValidateAgainstSchema checks value against a compiled schema and reports
// every violation. A nil schema accepts everything.
func ValidateAgainstSchema(schema *gojsonschema.Schema, value map[string]interface{}) ([]FieldViolation, error) {
	if schema == nil {
		return nil, nil
	}
	if value == nil {
		value = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]FieldViolation, len(result.Errors()))
	for i, desc := range result.Errors() {
		violations[i] = FieldViolation{Field: desc.Field(), Message: desc.Description()}
	}
	return violations, nil
}
