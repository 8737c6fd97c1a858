package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/tool"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func switchModeTool() tool.Definition {
	return tool.Must(func(ctx context.Context, mode string) string { return mode },
		tool.Name("switch_mode"),
		tool.Description("Switch to a specific learning mode"),
		tool.Parameters("mode"),
	)
}

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
	assert.NotNil(t, p.client)
}

func TestGroqModel(t *testing.T) {
	m := Groq("test-groq-model", "key", "")
	assert.Equal(t, "test-groq-model", m.Name())
	assert.Same(t, m, Model("test-groq-model"), "models are registered by name")
	assert.NotNil(t, m.Provider())
	assert.Same(t, m.Provider(), m.Provider())
}

func TestProvider_buildRequest(t *testing.T) {
	p := New()
	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.Message[messages.UserMessage]{
		Sender:  "participant-1",
		Payload: messages.UserMessage{Content: "I want a quiz"},
	})
	thread.AddToolCall(messages.Message[messages.ToolCallMessage]{
		Payload: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{
			{ID: "call_1", Name: "switch_mode", Arguments: `{"mode":"quiz"}`},
		}},
	})
	thread.AddToolResponse(messages.Message[messages.ToolResponse]{
		Payload: messages.ToolResponse{ToolName: "switch_mode", ToolCallID: "call_1", Content: "Hey there!"},
	})
	thread.AddAssistantMessage(messages.Message[messages.AssistantMessage]{
		Payload: messages.AssistantMessage{Content: "Which topic?"},
	})

	temp := 0.7
	params := &provider.CompletionParams{
		RunID:        uuid.New(),
		Instructions: "You are a tutor",
		Thread:       thread,
		Model:        NewModel(Llama3370B),
		Tools:        []tool.Definition{switchModeTool()},
		Temperature:  &temp,
	}

	req, err := p.buildRequest(context.Background(), params)
	require.NoError(t, err)

	assert.Len(t, req.Messages.Value, 5, "system prompt plus four thread entries")
	assert.Equal(t, Llama3370B, req.Model.Value)
	assert.InDelta(t, 0.7, req.Temperature.Value, 0.0001)
	assert.Equal(t, "participant-1", req.User.Value)

	tools := req.Tools.Value
	require.Len(t, tools, 1)
	assert.Equal(t, openai.ChatCompletionToolTypeFunction, tools[0].Type.Value)
	assert.Equal(t, "switch_mode", tools[0].Function.Value.Name.Value)
	assert.Equal(t, "Switch to a specific learning mode", tools[0].Function.Value.Description.Value)
	assert.Equal(t, "object", tools[0].Function.Value.Parameters.Value["type"])
}

func TestProvider_buildRequest_Errors(t *testing.T) {
	p := New()

	t.Run("nil tool function", func(t *testing.T) {
		_, err := p.buildRequest(context.Background(), &provider.CompletionParams{
			Thread: shorttermmemory.New(),
			Model:  NewModel(Llama3370B),
			Tools:  []tool.Definition{{Name: "broken"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tool broken has nil function")
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := p.buildRequest(context.Background(), &provider.CompletionParams{
			Thread: shorttermmemory.New(),
		})
		require.Error(t, err)
	})
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(option.WithBaseURL(server.URL+"/v1"), option.WithAPIKey("test"), option.WithMaxRetries(0))
}

func collect(events <-chan provider.StreamEvent) []provider.StreamEvent {
	var result []provider.StreamEvent
	for ev := range events {
		result = append(result, ev)
	}
	return result
}

func TestProvider_ChatCompletion(t *testing.T) {
	var body []byte
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "test-id",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Which mode would you like?"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 6, "total_tokens": 18}
		}`)
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		RunID:        uuid.New(),
		Instructions: "You are a tutor",
		Thread:       shorttermmemory.New(),
		Model:        NewModel(Llama3370B),
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 1)
	resp, ok := got[0].(provider.Response)
	require.True(t, ok, "got %T", got[0])
	assert.Equal(t, messages.AssistantMessage{Content: "Which mode would you like?"}, resp.Message)
	assert.Equal(t, shorttermmemory.Usage{PromptTokens: 12, CompletionTokens: 6, TotalTokens: 18}, resp.Usage)
	assert.Equal(t, Llama3370B, gjson.GetBytes(body, "model").String())
}

func TestProvider_ChatCompletion_ToolCall(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "test-id",
			"object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "switch_mode", "arguments": "{\"mode\":\"learn\"}"}}]}}]
		}`)
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  NewModel(Llama3370B),
		Tools:  []tool.Definition{switchModeTool()},
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 1)
	resp := got[0].(provider.Response)
	assert.Equal(t, messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{
		{ID: "call_1", Name: "switch_mode", Arguments: `{"mode":"learn"}`},
	}}, resp.Message)
}

func TestProvider_ChatCompletion_Stream(t *testing.T) {
	var body []byte
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		for _, chunk := range []string{
			`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello! "}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Which mode?"},"finish_reason":"stop"}]}`,
			`{"id":"c1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":20,"completion_tokens":4,"total_tokens":24}}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  NewModel(Llama3370B),
		Stream: true,
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 3)
	assert.Equal(t, "Hello! ", got[0].(provider.Chunk).Text)
	assert.Equal(t, "Which mode?", got[1].(provider.Chunk).Text)

	resp, ok := got[2].(provider.Response)
	require.True(t, ok, "got %T", got[2])
	assert.Equal(t, messages.AssistantMessage{Content: "Hello! Which mode?"}, resp.Message)
	assert.Equal(t, int64(24), resp.Usage.TotalTokens)
	assert.True(t, gjson.GetBytes(body, "stream_options.include_usage").Bool())
}

func TestProvider_ChatCompletion_ServerError(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  NewModel(Llama3370B),
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 1)
	errEvent, ok := got[0].(provider.Error)
	require.True(t, ok)
	assert.Error(t, errEvent.Err)
}

func TestProvider_ChatCompletion_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hello"}}]}`+"\n\n")
		flusher.Flush()
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := p.ChatCompletion(ctx, provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  NewModel(Llama3370B),
		Stream: true,
	})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, "Hello", first.(provider.Chunk).Text)
	<-started
	cancel()

	var last provider.StreamEvent
	for ev := range events {
		last = ev
	}
	errEvent, ok := last.(provider.Error)
	require.True(t, ok, "got %T", last)
	assert.ErrorIs(t, errEvent, context.Canceled)
}

func TestProvider_ChatCompletion_AbandonedStream(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := range 30 {
			fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"word%d "}}]}`+"\n\n", i)
			flusher.Flush()
		}
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := p.ChatCompletion(ctx, provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  NewModel(Llama3370B),
		Stream: true,
	})
	require.NoError(t, err)

	// nobody reads the events, the stream fills the buffer and has to give up on cancel
	require.Eventually(t, func() bool { return len(events) == cap(events) }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, streamRunning())
	cancel()
	assert.Eventually(t, func() bool { return !streamRunning() }, 2*time.Second, 10*time.Millisecond)
}

func streamRunning() bool {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Contains(string(buf[:n]), "(*Provider).runStream")
}
