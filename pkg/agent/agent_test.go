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
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/skyloom/pkg/llm/mock"
	"github.com/teradata-labs/skyloom/pkg/observability"
	"github.com/teradata-labs/skyloom/pkg/types"
	"go.uber.org/zap/zaptest"
)

type staticTools []types.ToolSchema

func (s staticTools) Schemas() []types.ToolSchema { return s }

// funcExecutor adapts a function to types.ToolExecutor.
type funcExecutor func(ctx context.Context, call types.ToolCall) types.ToolResult

func (f funcExecutor) Execute(ctx context.Context, call types.ToolCall) types.ToolResult {
	return f(ctx, call)
}

func okExecutor() funcExecutor {
	return func(_ context.Context, call types.ToolCall) types.ToolResult {
		return types.ToolResult{Result: map[string]interface{}{"tool": call.Name}}
	}
}

func newTestAgent(t *testing.T, llm types.LLMProvider, exec types.ToolExecutor, cfg Config) *Agent {
	t.Helper()
	return New(llm, NewConversationStore(DefaultMaxHistory),
		WithConfig(cfg),
		WithTools(staticTools{{Name: "geocode"}}, exec),
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(observability.NewMetrics()),
	)
}

func TestChat_SinglePass(t *testing.T) {
	llm := mock.NewScripted(mock.Text("Paris is at 48.85N."))
	a := newTestAgent(t, llm, okExecutor(), Config{SystemPrompt: "You are helpful."})

	reply, err := a.Chat(context.Background(), "c1", "Where is Paris?", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, reply.Iterations)
	assert.Equal(t, 1, llm.Calls())
	assert.False(t, reply.Truncated)
	assert.Equal(t, types.RoleAssistant, reply.Message.Role)
	assert.Equal(t, "Paris is at 48.85N.", reply.Message.Content)

	history := a.Store().Messages("c1")
	require.Len(t, history, 3)
	assert.Equal(t, types.RoleSystem, history[0].Role)
	assert.Equal(t, types.RoleUser, history[1].Role)
	assert.Equal(t, reply.Message.Content, history[2].Content)

	// The LLM saw the system prompt and the user message, and the tools.
	assert.Len(t, llm.Request(0), 2)
	assert.Equal(t, "geocode", llm.Tools(0)[0].Name)
}

func TestChat_StopsAtIterationCap(t *testing.T) {
	llm := mock.NewScripted(mock.ToolCalls(types.ToolCall{ID: "x", Name: "geocode"}))
	a := newTestAgent(t, llm, okExecutor(), Config{})

	done := make(chan struct{})
	var reply *Reply
	var err error
	go func() {
		defer close(done)
		reply, err = a.Chat(context.Background(), "c1", "loop forever", nil)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("agent loop did not terminate")
	}

	require.NoError(t, err)
	assert.True(t, reply.Truncated)
	assert.Equal(t, DefaultMaxIterations, reply.Iterations)
	assert.Equal(t, DefaultMaxIterations, llm.Calls())
	assert.Equal(t, DefaultFallbackMessage, reply.Message.Content)
	assert.Len(t, reply.ToolResults, DefaultMaxIterations)

	history := a.Store().Messages("c1")
	assert.Equal(t, DefaultFallbackMessage, history[len(history)-1].Content)
}

func TestChat_ToolRoundTrip(t *testing.T) {
	llm := mock.NewScripted(
		mock.ToolCalls(
			types.ToolCall{ID: "a", Name: "geocode", Arguments: map[string]interface{}{"q": "Paris"}},
			types.ToolCall{ID: "b", Name: "geocode", Arguments: map[string]interface{}{"q": "Rome"}},
			types.ToolCall{Name: "explode"},
		),
		mock.Text("Both found."),
	)
	exec := funcExecutor(func(_ context.Context, call types.ToolCall) types.ToolResult {
		switch call.Name {
		case "explode":
			panic("kaboom")
		default:
			return types.ToolResult{Result: call.Arguments["q"]}
		}
	})

	var mu sync.Mutex
	var stages []types.ExecutionStage
	progress := func(ev types.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, ev.Stage)
	}

	a := newTestAgent(t, llm, exec, Config{})
	reply, err := a.Chat(context.Background(), "c1", "Find Paris and Rome", progress)
	require.NoError(t, err)

	assert.Equal(t, 2, reply.Iterations)
	assert.Equal(t, "Both found.", reply.Message.Content)
	require.Len(t, reply.ToolResults, 3)
	assert.Equal(t, "Paris", reply.ToolResults[0].Result)
	assert.Equal(t, "Rome", reply.ToolResults[1].Result)
	assert.Contains(t, reply.ToolResults[2].Error, "kaboom")
	assert.NotEmpty(t, reply.ToolResults[2].ToolCallID, "missing ids are filled in")

	history := a.Store().Messages("c1")
	roles := make([]types.Role, len(history))
	for i, m := range history {
		roles[i] = m.Role
	}
	assert.Equal(t, []types.Role{
		types.RoleUser, types.RoleAssistant,
		types.RoleTool, types.RoleTool, types.RoleTool,
		types.RoleAssistant,
	}, roles)
	assert.Equal(t, "a", history[2].ToolCallID)
	assert.Equal(t, "Paris", history[2].Content)
	assert.Equal(t, "b", history[3].ToolCallID)
	assert.Contains(t, history[4].Content, "Error: ")

	// The second LLM call saw the tool results.
	assert.Len(t, llm.Request(1), 5)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types.StageThinking, stages[0])
	assert.Equal(t, types.StageCompleted, stages[len(stages)-1])
	assert.Len(t, stages, 1+3+3+1+1)
}

func TestChat_ToolsRunConcurrently(t *testing.T) {
	const n = 3
	llm := mock.NewScripted(
		mock.ToolCalls(
			types.ToolCall{ID: "1", Name: "geocode"},
			types.ToolCall{ID: "2", Name: "geocode"},
			types.ToolCall{ID: "3", Name: "geocode"},
		),
		mock.Text("ok"),
	)

	var wg sync.WaitGroup
	wg.Add(n)
	exec := funcExecutor(func(context.Context, types.ToolCall) types.ToolResult {
		wg.Done()
		wg.Wait() // only returns once every call is in flight
		return types.ToolResult{Result: "ok"}
	})

	a := newTestAgent(t, llm, exec, Config{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := a.Chat(context.Background(), "c1", "go", nil)
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tool calls did not run concurrently")
	}
}

func TestChat_ProviderError(t *testing.T) {
	boom := errors.New("overloaded")
	a := newTestAgent(t, mock.NewSteps(mock.Step{Err: boom}), okExecutor(), Config{})

	_, err := a.Chat(context.Background(), "c1", "hi", nil)
	assert.ErrorIs(t, err, boom)
}

func TestChat_InputValidation(t *testing.T) {
	a := newTestAgent(t, mock.NewEcho(), okExecutor(), Config{})

	_, err := a.Chat(context.Background(), "c1", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = a.Chat(context.Background(), "", "hi", nil)
	assert.ErrorIs(t, err, ErrEmptyConversation)
}

func TestChat_NoExecutor(t *testing.T) {
	llm := mock.NewScripted(mock.ToolCalls(types.ToolCall{ID: "1", Name: "geocode"}), mock.Text("sorry"))
	a := New(llm, nil, WithLogger(zaptest.NewLogger(t)))

	reply, err := a.Chat(context.Background(), "c1", "hi", nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolResults, 1)
	assert.Equal(t, "no tool executor configured", reply.ToolResults[0].Error)
}

func TestChat_Timestamps(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	a := New(mock.NewEcho(), nil, WithClock(clock))

	reply, err := a.Chat(context.Background(), "c1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), reply.Message.Timestamp)
	assert.Equal(t, "You said: hi", reply.Message.Content)
}

// userTurnRequired rejects histories with no user message, as a hosted API
// does once trimming has dropped the question.
type userTurnRequired struct {
	*mock.Provider
}

func (p userTurnRequired) Chat(ctx context.Context, messages []types.Message, tools []types.ToolSchema) (*types.LLMResponse, error) {
	for _, m := range messages {
		if m.Role == types.RoleUser {
			return p.Provider.Chat(ctx, messages, tools)
		}
	}
	return nil, errors.New("no valid messages to send")
}

func TestChat_ToolTrafficOverflowsHistory(t *testing.T) {
	scripted := mock.NewScripted(
		mock.ToolCalls(types.ToolCall{ID: "1", Name: "geocode"}, types.ToolCall{ID: "2", Name: "geocode"}),
		mock.ToolCalls(types.ToolCall{ID: "3", Name: "geocode"}),
		mock.Text("Found them."),
	)
	a := New(userTurnRequired{scripted}, NewConversationStore(3),
		WithConfig(Config{SystemPrompt: "You are helpful."}),
		WithTools(staticTools{{Name: "geocode"}}, okExecutor()),
		WithLogger(zaptest.NewLogger(t)),
	)

	reply, err := a.Chat(context.Background(), "c1", "Where are Paris and Rome?", nil)
	require.NoError(t, err)
	assert.False(t, reply.Truncated)
	assert.Equal(t, "Found them.", reply.Message.Content)
	require.Equal(t, 3, scripted.Calls())

	for i := 0; i < scripted.Calls(); i++ {
		req := scripted.Request(i)
		require.GreaterOrEqual(t, len(req), 2)
		assert.Equal(t, types.RoleSystem, req[0].Role)
		assert.Equal(t, types.RoleUser, req[1].Role, "request %d lost the question", i)
		assert.Equal(t, "Where are Paris and Rome?", req[1].Content)
	}
}

func TestChat_ToolTrafficOverflowsHistoryToFallback(t *testing.T) {
	scripted := mock.NewScripted(mock.ToolCalls(types.ToolCall{ID: "x", Name: "geocode"}))
	a := New(userTurnRequired{scripted}, NewConversationStore(1),
		WithConfig(Config{SystemPrompt: "You are helpful.", MaxIterations: 3}),
		WithTools(staticTools{{Name: "geocode"}}, okExecutor()),
	)

	reply, err := a.Chat(context.Background(), "c1", "loop", nil)
	require.NoError(t, err)
	assert.True(t, reply.Truncated)
	assert.Equal(t, DefaultFallbackMessage, reply.Message.Content)
	assert.Equal(t, 3, scripted.Calls())
}

// turnTracker answers a user message with one tool call and a tool result
// with text, recording the highest number of overlapping calls.
type turnTracker struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (p *turnTracker) Name() string  { return "tracker" }
func (p *turnTracker) Model() string { return "tracker" }

func (p *turnTracker) Chat(_ context.Context, messages []types.Message, _ []types.ToolSchema) (*types.LLMResponse, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	last := messages[len(messages)-1]
	if last.Role == types.RoleUser {
		return mock.ToolCalls(types.ToolCall{Name: "geocode"}), nil
	}
	return mock.Text("done"), nil
}

func TestChat_SameConversationTurnsSerialize(t *testing.T) {
	const turns = 5
	tracker := &turnTracker{}
	a := newTestAgent(t, tracker, okExecutor(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Chat(context.Background(), "shared", "where?", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tracker.maxInFlight)
	assert.Equal(t, 0, a.turns.len())

	// Every tool call is directly followed by its result.
	history := a.Store().Messages("shared")
	require.Len(t, history, turns*4)
	for i, m := range history {
		if len(m.ToolCalls) == 0 {
			continue
		}
		require.Less(t, i+1, len(history))
		assert.Equal(t, types.RoleTool, history[i+1].Role)
		assert.Equal(t, m.ToolCalls[0].ID, history[i+1].ToolCallID)
	}
}
