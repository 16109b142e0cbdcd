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
	"sort"
	"sync"

	"github.com/teradata-labs/skyloom/pkg/types"
)

// DefaultMaxHistory is the default number of messages kept per conversation.
const DefaultMaxHistory = 50

// ConversationStore keeps bounded per-conversation message history in memory.
// Conversations are created on first append and live until cleared.
// Thread-safe: all methods can be called concurrently.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string][]types.Message
	maxMessages   int
}

// NewConversationStore creates a store that keeps at most maxMessages per
// conversation. Values below one use DefaultMaxHistory.
func NewConversationStore(maxMessages int) *ConversationStore {
	if maxMessages < 1 {
		maxMessages = DefaultMaxHistory
	}
	return &ConversationStore{
		conversations: make(map[string][]types.Message),
		maxMessages:   maxMessages,
	}
}

// Seed appends msg only if the conversation is empty and reports whether it did.
func (s *ConversationStore) Seed(id string, msg types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conversations[id]) > 0 {
		return false
	}
	s.conversations[id] = []types.Message{msg}
	return true
}

// Append adds messages to a conversation and trims it to the retention limit.
func (s *ConversationStore) Append(id string, msgs ...types.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = s.trim(append(s.conversations[id], msgs...))
}

// trim drops the oldest messages beyond the limit. A leading system message
// is always kept and counts toward the limit. The newest user message and
// everything after it are never dropped, so a turn whose tool traffic
// outgrows the limit keeps its question until the next turn starts. Tool
// results whose assistant call was dropped go with it.
func (s *ConversationStore) trim(msgs []types.Message) []types.Message {
	if len(msgs) <= s.maxMessages {
		return msgs
	}

	var system []types.Message
	body := msgs
	if msgs[0].Role == types.RoleSystem {
		system, body = msgs[:1], msgs[1:]
	}

	start := len(body) - (s.maxMessages - len(system))
	if start < 0 {
		start = 0
	}
	if turn := lastUserIndex(body); turn >= 0 && start > turn {
		start = turn
	}

	tail := withoutOrphanedResults(body[start:])
	kept := make([]types.Message, 0, len(system)+len(tail))
	kept = append(kept, system...)
	return append(kept, tail...)
}

func lastUserIndex(msgs []types.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			return i
		}
	}
	return -1
}

func withoutOrphanedResults(msgs []types.Message) []types.Message {
	for len(msgs) > 0 && msgs[0].Role == types.RoleTool {
		msgs = msgs[1:]
	}
	return msgs
}

// Messages returns a copy of the conversation history.
func (s *ConversationStore) Messages(id string) []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[id]
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of messages held for a conversation.
func (s *ConversationStore) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[id])
}

// Clear forgets a conversation and reports whether it existed.
func (s *ConversationStore) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[id]
	delete(s.conversations, id)
	return ok
}

// Conversations returns the known conversation ids in sorted order.
func (s *ConversationStore) Conversations() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
