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

package router

import (
	"encoding/json"

	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
)

// DecodeParams copies params into a typed struct using its json tags.
// Decoding failures are reported as InvalidParams protocol errors.
func DecodeParams(params map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return protocol.NewInvalidParams("Invalid params", err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return protocol.NewInvalidParams("Invalid params", err.Error())
	}
	return nil
}
