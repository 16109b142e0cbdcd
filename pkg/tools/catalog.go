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
// Package tools describes the tools offered to the LLM and executes the
// calls it makes by dispatching them through the method router.
package tools

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/types"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Definition is one tool in the catalog.
type Definition struct {
	// Name is the tool name shown to the LLM
	Name string `yaml:"name"`

	// Description tells the LLM when to use the tool
	Description string `yaml:"description"`

	// Method is the router method that implements the tool (default: Name)
	Method string `yaml:"method"`

	// InputSchema is the JSON Schema for the tool's arguments
	InputSchema map[string]interface{} `yaml:"input_schema"`
}

type catalogFile struct {
	Tools []Definition `yaml:"tools"`
}

type catalogEntry struct {
	def    Definition
	schema *gojsonschema.Schema
}

// Catalog is the ordered set of tools offered to the LLM.
// Thread-safe: all methods can be called concurrently.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]catalogEntry
	order   []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]catalogEntry)}
}

// LoadCatalog reads a YAML catalog file. ${VAR} references are expanded from
// the environment before parsing.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog %s: %w", path, err)
	}
	return ParseCatalog([]byte(os.ExpandEnv(string(data))))
}

// ParseCatalog builds a catalog from YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}

	c := NewCatalog()
	for i, def := range file.Tools {
		if err := c.Add(def); err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
	}
	return c, nil
}

// Add registers a tool. Adding a name twice replaces the earlier definition
// in place.
func (c *Catalog) Add(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Method == "" {
		def.Method = def.Name
	}
	if def.InputSchema == nil {
		def.InputSchema = map[string]interface{}{"type": "object"}
	}

	schema, err := protocol.CompileSchema(def.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: %w", def.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[def.Name]; !exists {
		c.order = append(c.order, def.Name)
	}
	c.entries[def.Name] = catalogEntry{def: def, schema: schema}
	return nil
}

// Replace swaps in the contents of other in one step, so readers see either
// the old tool set or the new one. other is not modified.
func (c *Catalog) Replace(other *Catalog) {
	other.mu.RLock()
	entries := make(map[string]catalogEntry, len(other.entries))
	for name, e := range other.entries {
		entries[name] = e
	}
	order := append([]string(nil), other.order...)
	other.mu.RUnlock()

	c.mu.Lock()
	c.entries = entries
	c.order = order
	c.mu.Unlock()
}

// Get returns a tool definition by name.
func (c *Catalog) Get(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e.def, ok
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Schemas returns the LLM-facing tool descriptions in catalog order.
func (c *Catalog) Schemas() []types.ToolSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.ToolSchema, 0, len(c.order))
	for _, name := range c.order {
		def := c.entries[name].def
		out = append(out, types.ToolSchema{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return out
}

// validate checks arguments against the tool's input schema.
func (c *Catalog) validate(name string, args map[string]interface{}) ([]protocol.FieldViolation, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok || e.schema == nil {
		return nil, nil
	}
	return protocol.ValidateAgainstSchema(e.schema, args)
}

// RegisterMethods adds tools/list to r.
func (c *Catalog) RegisterMethods(r *router.Router) error {
	return r.Register(router.MethodListTools, func(context.Context, map[string]interface{}, *router.CallContext) (interface{}, error) {
		return map[string]interface{}{"tools": c.Schemas()}, nil
	})
}
