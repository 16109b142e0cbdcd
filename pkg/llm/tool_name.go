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

package llm

import (
	"strings"
)

// SanitizeToolName makes a tool name acceptable to LLM tool-use APIs.
//
// Provider tool-name patterns:
//   - Anthropic: ^[a-zA-Z0-9_-]{1,64}$
//   - OpenAI:    ^[a-zA-Z0-9_-]{1,64}$
//
// Gateway methods use slash namespacing (e.g., "imagery/search") which breaks
// these patterns. Every rune outside the allowed set becomes an underscore and
// the result is cut to 64 bytes.
func SanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// BuildToolNameMap creates a mapping from sanitized → original tool names.
func BuildToolNameMap(names []string) map[string]string {
	m := make(map[string]string, len(names))
	for _, name := range names {
		m[SanitizeToolName(name)] = name
	}
	return m
}

// ReverseToolName maps a sanitized tool name back to its original.
// Returns the sanitized name unchanged if it is not in the map.
func ReverseToolName(nameMap map[string]string, sanitizedName string) string {
	if original, exists := nameMap[sanitizedName]; exists {
		return original
	}
	return sanitizedName
}
