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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/teradata-labs/skyloom/pkg/mcp/client"
)

var (
	gatewayURL  string
	callStream  bool
	callTimeout time.Duration
	clientID    string
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the methods registered on a running gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()

		methods, err := newClient().Methods(ctx)
		if err != nil {
			return err
		}
		for _, m := range methods {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Call a method on a running gateway",
	Long: `Call a method on a running gateway and print the response.

Examples:
  skyloom call ping
  skyloom call chat '{"message":"Where is Paris?"}'
  skyloom call chat '{"message":"Where is Paris?"}' --stream
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	for _, cmd := range []*cobra.Command{methodsCmd, callCmd} {
		cmd.Flags().StringVar(&gatewayURL, "url", "", "Gateway URL (default: from server.host/server.port)")
		cmd.Flags().DurationVar(&callTimeout, "timeout", 5*time.Minute, "Timeout for the call")
	}
	callCmd.Flags().BoolVar(&callStream, "stream", false, "Stream progress events")
	callCmd.Flags().StringVar(&clientID, "client-id", "", "Client id for streaming (default: random)")
}

func newClient() *client.Client {
	url := gatewayURL
	if url == "" {
		url = "http://" + cfg.Server.Addr()
	}
	return client.New(client.Config{BaseURL: url, ClientID: clientID, Timeout: callTimeout})
}

func runCall(cmd *cobra.Command, args []string) error {
	method := args[0]

	var params map[string]interface{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			return fmt.Errorf("params must be a JSON object: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	c := newClient()

	if !callStream {
		resp, err := c.Call(ctx, method, params)
		if err != nil {
			return err
		}
		return printJSON(out, resp)
	}

	result, err := c.Stream(ctx, method, params, func(ev client.Event) {
		fmt.Fprintf(out, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
	})
	if err != nil {
		return err
	}
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
