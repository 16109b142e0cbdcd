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

// skyloom is a JSON-RPC gateway that lets an LLM-driven agent invoke
// registered methods, synchronously or with results streamed over
// server-sent events.
//
// Usage:
//
//	skyloom serve --port 8765
//	skyloom methods
//	skyloom call ping
//	skyloom call chat '{"message":"Where is Paris?"}' --stream
package main

func main() {
	Execute()
}
