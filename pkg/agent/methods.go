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

package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/types"
)

var chatParamsSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"message"},
	"properties": map[string]interface{}{
		"message":        map[string]interface{}{"type": "string", "minLength": 1},
		"conversationId": map[string]interface{}{"type": "string"},
	},
}

var clearParamsSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"conversationId"},
	"properties": map[string]interface{}{
		"conversationId": map[string]interface{}{"type": "string", "minLength": 1},
	},
}

type chatParams struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// ChatResult is the result of the chat method.
type ChatResult struct {
	ConversationID string `json:"conversationId"`
	*Reply
}

// RegisterMethods adds chat and conversation/clear to r.
func (a *Agent) RegisterMethods(r *router.Router) error {
	if err := r.Register(router.MethodChat, a.handleChat, router.WithParamsSchema(chatParamsSchema)); err != nil {
		return err
	}
	return r.Register(router.MethodClearConversation, a.handleClear, router.WithParamsSchema(clearParamsSchema))
}

// handleChat runs one chat turn. Without an explicit conversationId the
// caller's client id names the conversation, and a fresh id is minted when
// there is neither. Concurrent calls on one conversation queue behind
// each other.
func (a *Agent) handleChat(ctx context.Context, params map[string]interface{}, call *router.CallContext) (interface{}, error) {
	var p chatParams
	if err := router.DecodeParams(params, &p); err != nil {
		return nil, err
	}

	conversationID := p.ConversationID
	if conversationID == "" && call != nil {
		conversationID = call.ClientID
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var progress types.ProgressCallback
	if call.IsStreaming() {
		progress = func(ev types.ProgressEvent) {
			call.Progress(ev)
		}
	}

	reply, err := a.Chat(ctx, conversationID, p.Message, progress)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return nil, protocol.NewInvalidParams("message is required", nil)
		}
		return nil, err
	}
	return ChatResult{ConversationID: conversationID, Reply: reply}, nil
}

func (a *Agent) handleClear(_ context.Context, params map[string]interface{}, _ *router.CallContext) (interface{}, error) {
	var p chatParams
	if err := router.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return map[string]interface{}{"cleared": a.store.Clear(p.ConversationID)}, nil
}
