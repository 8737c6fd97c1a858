package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/recall/agent"
	"github.com/casualjim/recall/events"
	"github.com/casualjim/recall/internal/broker"
	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/metrics"
	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider answers every completion with the next scripted message.
type scriptedProvider struct {
	mu           sync.Mutex
	script       []provider.StreamEvent
	threadLens   []int
	instructions []string
}

func (p *scriptedProvider) ChatCompletion(_ context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.threadLens = append(p.threadLens, params.Thread.Len())
	p.instructions = append(p.instructions, params.Instructions)
	ch := make(chan provider.StreamEvent, 2)
	if len(p.script) == 0 {
		close(ch)
		return ch, nil
	}
	next := p.script[0]
	p.script = p.script[1:]
	if resp, ok := next.(provider.Response); ok {
		if text, ok := resp.Message.(messages.AssistantMessage); ok {
			ch <- provider.Chunk{Text: text.Content}
		}
	}
	ch <- next
	close(ch)
	return ch, nil
}

type fakeModel struct {
	prov provider.Provider
}

func (m *fakeModel) Name() string                { return "fake-model" }
func (m *fakeModel) Provider() provider.Provider { return m.prov }

func reply(text string) provider.StreamEvent {
	return provider.Response{
		Message: messages.AssistantMessage{Content: text},
		Usage:   shorttermmemory.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func callTool(id, name, args string) provider.StreamEvent {
	return provider.Response{
		Message: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: id, Name: name, Arguments: args}}},
		Usage:   shorttermmemory.Usage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10},
	}
}

func newTestAgent(t *testing.T, prov provider.Provider, tools ...tool.Definition) agent.Agent {
	t.Helper()
	options := []agent.Option{
		agent.Name("tutor"),
		agent.Model(&fakeModel{prov: prov}),
		agent.Instructions("Current mode: {{.Mode}}"),
	}
	if len(tools) > 0 {
		options = append(options, agent.Tools(tools[0], tools[1:]...))
	}
	a, err := agent.New(options...)
	require.NoError(t, err)
	return a
}

type collectingHook struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	toolCalls []events.ToolCall
	metrics   []events.Metrics
}

func (h *collectingHook) OnSessionStarted(context.Context, events.SessionStarted) {}
func (h *collectingHook) OnUserSpeech(context.Context, events.UserSpeech)         {}
func (h *collectingHook) OnAgentSpeech(context.Context, events.AgentSpeech)       {}
func (h *collectingHook) OnSessionEnded(context.Context, events.SessionEnded)     {}
func (h *collectingHook) OnError(context.Context, events.Error)                   {}

func (h *collectingHook) OnToolCall(_ context.Context, e events.ToolCall) {
	h.mu.Lock()
	h.toolCalls = append(h.toolCalls, e)
	h.mu.Unlock()
	h.wg.Done()
}

func (h *collectingHook) OnMetrics(_ context.Context, e events.Metrics) {
	h.mu.Lock()
	h.metrics = append(h.metrics, e)
	h.mu.Unlock()
	h.wg.Done()
}

func TestRunToolRoundTrip(t *testing.T) {
	mode := "unset"
	switchMode := tool.Must(func(ctx context.Context, m string) string {
		mode = m
		return "Hey there! I'm Alicia"
	}, tool.Name("switch_mode"), tool.Parameters("mode"))

	prov := &scriptedProvider{script: []provider.StreamEvent{
		callTool("call_1", "switch_mode", `{"mode":"quiz"}`),
		reply("Hey there! I'm Alicia. Which topic?"),
	}}

	topic := broker.Local().Topic(context.Background(), "executor-test")
	hook := &collectingHook{}
	hook.wg.Add(3) // two completions and one tool call
	sub, err := topic.Subscribe(context.Background(), hook)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	thread := shorttermmemory.New()
	cmd, err := NewCommand(newTestAgent(t, prov, switchMode), thread, "quiz me please")
	require.NoError(t, err)
	cmd.Topic = topic
	cmd.Room = "room-1"
	cmd.ContextVariables = func() agent.ContextVars { return agent.ContextVars{"Mode": mode} }

	out, err := Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "Hey there! I'm Alicia. Which topic?", out)
	assert.Equal(t, "quiz", mode)

	// user, tool call, tool response, assistant
	require.Equal(t, 4, thread.Len())
	msgs := thread.Messages()
	assert.Equal(t, messages.UserMessage{Content: "quiz me please"}, msgs[0].Payload)
	assert.Equal(t, messages.ToolResponse{ToolName: "switch_mode", ToolCallID: "call_1", Content: "Hey there! I'm Alicia"}, msgs[2].Payload)
	assert.Equal(t, int64(25), thread.Usage().TotalTokens)

	assert.Equal(t, []string{"Current mode: unset", "Current mode: quiz"}, prov.instructions, "instructions are rendered before every completion")
	assert.Equal(t, []int{1, 3}, prov.threadLens, "second completion sees the tool call and its response")

	done := make(chan struct{})
	go func() { hook.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for events")
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.toolCalls, 1)
	assert.Equal(t, "switch_mode", hook.toolCalls[0].Name)
	assert.Equal(t, "room-1", hook.toolCalls[0].Room)
	assert.False(t, hook.toolCalls[0].Failed)
	require.Len(t, hook.metrics, 2)
	llm, ok := hook.metrics[0].Metrics.(metrics.LLM)
	require.True(t, ok)
	assert.Equal(t, "fake-model", llm.Model)
	assert.Equal(t, int64(8), llm.PromptTokens)
}

func TestRunUnknownTool(t *testing.T) {
	prov := &scriptedProvider{script: []provider.StreamEvent{
		callTool("call_1", "launch_rocket", `{}`),
		reply("I can't do that."),
	}}

	thread := shorttermmemory.New()
	cmd, err := NewCommand(newTestAgent(t, prov), thread, "launch")
	require.NoError(t, err)

	out, err := Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "I can't do that.", out)

	resp, ok := thread.Messages()[2].Payload.(messages.ToolResponse)
	require.True(t, ok)
	assert.Contains(t, resp.Content, `unknown tool "launch_rocket"`)
}

func TestRunToolError(t *testing.T) {
	failing := tool.Must(func(s string) (string, error) { return "", errors.New("content unavailable") },
		tool.Name("get_concept"), tool.Parameters("concept_id"))
	prov := &scriptedProvider{script: []provider.StreamEvent{
		callTool("call_1", "get_concept", `{"concept_id":"loops"}`),
		reply("Sorry."),
	}}

	thread := shorttermmemory.New()
	cmd, err := NewCommand(newTestAgent(t, prov, failing), thread, "loops")
	require.NoError(t, err)

	_, err = Run(context.Background(), cmd)
	require.NoError(t, err)
	resp := thread.Messages()[2].Payload.(messages.ToolResponse)
	assert.Equal(t, "Error: content unavailable", resp.Content)
}

func TestRunMaxTurns(t *testing.T) {
	echo := tool.Must(func(s string) string { return s }, tool.Name("echo"), tool.Parameters("s"))
	var script []provider.StreamEvent
	for range 3 {
		script = append(script, callTool("call", "echo", `{"s":"again"}`))
	}
	prov := &scriptedProvider{script: script}

	thread := shorttermmemory.New()
	cmd, err := NewCommand(newTestAgent(t, prov, echo), thread, "loop forever")
	require.NoError(t, err)
	cmd.MaxTurns = 3

	_, err = Run(context.Background(), cmd)
	require.ErrorIs(t, err, ErrMaxTurns)
	assert.Equal(t, 0, thread.Len(), "failed runs leave the thread untouched")
}

func TestRunProviderError(t *testing.T) {
	prov := &scriptedProvider{script: []provider.StreamEvent{
		provider.Error{Err: errors.New("rate limited")},
	}}

	thread := shorttermmemory.New()
	cmd, err := NewCommand(newTestAgent(t, prov), thread, "hello")
	require.NoError(t, err)

	_, err = Run(context.Background(), cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 0, thread.Len())
}

func TestRunStreamClosedEarly(t *testing.T) {
	prov := &scriptedProvider{}
	cmd, err := NewCommand(newTestAgent(t, prov), shorttermmemory.New(), "hello")
	require.NoError(t, err)

	_, err = Run(context.Background(), cmd)
	require.Error(t, err)
}

func TestNewCommandValidation(t *testing.T) {
	_, err := NewCommand(nil, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent is required")
	assert.Contains(t, err.Error(), "thread is required")

	prov := &scriptedProvider{}
	cmd, err := NewCommand(newTestAgent(t, prov), shorttermmemory.New(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTurns, cmd.MaxTurns)
	assert.True(t, cmd.Stream)

	cmd.MaxTurns = 0
	require.Error(t, cmd.Validate())
}
