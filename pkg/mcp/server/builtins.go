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

package server

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
)

// RegisterBuiltins adds ping and methods/list to r.
func RegisterBuiltins(r *router.Router, clock clockwork.Clock) error {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if err := r.Register(router.MethodPing, pingHandler(clock)); err != nil {
		return err
	}
	return r.Register(router.MethodListMethods, listMethodsHandler(r))
}

func pingHandler(clock clockwork.Clock) router.Handler {
	return func(context.Context, map[string]interface{}, *router.CallContext) (interface{}, error) {
		return map[string]interface{}{
			"pong":      true,
			"timestamp": clock.Now().UTC().Format(time.RFC3339Nano),
		}, nil
	}
}

func listMethodsHandler(r *router.Router) router.Handler {
	return func(context.Context, map[string]interface{}, *router.CallContext) (interface{}, error) {
		return map[string]interface{}{"methods": r.ListMethods()}, nil
	}
}
