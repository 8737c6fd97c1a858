// Package executor answers one participant utterance: it runs chat completions
// against the agent's model and dispatches the tool calls the model asks for
// until the model replies with text.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/recall/events"
	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/metrics"
	"github.com/casualjim/recall/pkg/slogx"
	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/tool"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// ErrMaxTurns is returned when the model keeps calling tools past the turn budget.
var ErrMaxTurns = errors.New("max turns exceeded")

// Run answers cmd.Prompt and returns the reply text. The exchange is added to
// cmd.Thread only when the run succeeds.
func Run(ctx context.Context, cmd Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	model := cmd.Agent.Model()
	if model == nil {
		return "", errors.New("agent model cannot be nil")
	}
	prov := model.Provider()
	if prov == nil {
		return "", errors.New("model provider cannot be nil")
	}

	r := &run{
		cmd:    cmd,
		runID:  cmd.ID(),
		thread: cmd.Thread.Fork(),
		prov:   prov,
		tools:  make(map[string]tool.Definition, len(cmd.Agent.Tools())),
		logger: slog.Default().With(slogx.LoggerName("executor"), slogx.Room(cmd.Room)),
	}
	for _, t := range cmd.Agent.Tools() {
		r.tools[t.Name] = t
	}

	if cmd.Prompt != "" {
		r.thread.AddUserPrompt(messages.Message[messages.UserMessage]{
			RunID:     r.runID,
			TurnID:    r.thread.ID(),
			Payload:   messages.UserMessage{Content: cmd.Prompt},
			Sender:    cmd.Sender,
			Timestamp: now(),
		})
	}

	reply, err := r.loop(ctx)
	if err != nil {
		return "", err
	}
	cmd.Thread.Join(r.thread)
	return reply, nil
}

type run struct {
	cmd    Command
	runID  uuid.UUID
	thread *shorttermmemory.Aggregator
	prov   provider.Provider
	tools  map[string]tool.Definition
	logger *slog.Logger
}

func now() strfmt.DateTime {
	return strfmt.DateTime(time.Now().UTC())
}

func (r *run) loop(ctx context.Context) (string, error) {
	for range r.cmd.MaxTurns {
		resp, err := r.complete(ctx)
		if err != nil {
			return "", err
		}

		switch msg := resp.Message.(type) {
		case messages.AssistantMessage:
			r.thread.AddAssistantMessage(messages.Message[messages.AssistantMessage]{
				RunID:     r.runID,
				TurnID:    resp.TurnID,
				Payload:   msg,
				Sender:    r.cmd.Agent.Name(),
				Timestamp: resp.Timestamp,
			})
			return msg.Content, nil
		case messages.ToolCallMessage:
			r.thread.AddToolCall(messages.Message[messages.ToolCallMessage]{
				RunID:     r.runID,
				TurnID:    resp.TurnID,
				Payload:   msg,
				Sender:    r.cmd.Agent.Name(),
				Timestamp: resp.Timestamp,
			})
			r.callTools(ctx, msg)
		default:
			return "", fmt.Errorf("unexpected completion message %T", resp.Message)
		}
	}
	return "", ErrMaxTurns
}

// complete runs one chat completion and waits for its final message.
func (r *run) complete(ctx context.Context) (provider.Response, error) {
	instructions, err := r.cmd.Agent.RenderInstructions(r.cmd.contextVars())
	if err != nil {
		return provider.Response{}, fmt.Errorf("failed to render instructions: %w", err)
	}

	started := time.Now()
	stream, err := r.prov.ChatCompletion(ctx, provider.CompletionParams{
		RunID:        r.runID,
		Instructions: instructions,
		Thread:       r.thread,
		Model:        r.cmd.Agent.Model(),
		Tools:        r.cmd.Agent.Tools(),
		Temperature:  r.cmd.Agent.Temperature(),
		Stream:       r.cmd.Stream,
	})
	if err != nil {
		return provider.Response{}, fmt.Errorf("failed to get chat completion: %w", err)
	}

	var ttft time.Duration
	for {
		select {
		case <-ctx.Done():
			return provider.Response{}, ctx.Err()
		case event, ok := <-stream:
			if !ok {
				return provider.Response{}, errors.New("completion stream closed without a response")
			}
			switch event := event.(type) {
			case provider.Chunk:
				if ttft == 0 {
					ttft = time.Since(started)
				}
			case provider.Error:
				return provider.Response{}, event
			case provider.Response:
				if ttft == 0 {
					ttft = time.Since(started)
				}
				r.thread.AddUsage(&event.Usage)
				r.publish(ctx, events.Metrics{
					Header: r.header(),
					Metrics: metrics.LLM{
						RequestID:        r.runID.String(),
						Model:            r.cmd.Agent.Model().Name(),
						Duration:         time.Since(started),
						TTFT:             ttft,
						PromptTokens:     event.Usage.PromptTokens,
						CompletionTokens: event.Usage.CompletionTokens,
						TotalTokens:      event.Usage.TotalTokens,
					},
				})
				return event, nil
			default:
				panic(fmt.Sprintf("unknown event type %T", event))
			}
		}
	}
}

// callTools runs the requested tools in order. Failures become error responses
// for the model rather than failing the run.
func (r *run) callTools(ctx context.Context, calls messages.ToolCallMessage) {
	for _, call := range calls.ToolCalls {
		var (
			content string
			failed  bool
		)
		def, exists := r.tools[call.Name]
		if !exists {
			content = fmt.Sprintf("Error: unknown tool %q", call.Name)
			failed = true
		} else {
			result, err := def.Call(ctx, call.Arguments)
			if err != nil {
				content = "Error: " + err.Error()
				failed = true
			} else {
				content = result
			}
		}
		if failed {
			r.logger.WarnContext(ctx, "tool call failed", slog.String("tool", call.Name), slog.String("result", content))
		}

		r.thread.AddToolResponse(messages.Message[messages.ToolResponse]{
			RunID:     r.runID,
			TurnID:    r.thread.ID(),
			Payload:   messages.ToolResponse{ToolName: call.Name, ToolCallID: call.ID, Content: content},
			Sender:    r.cmd.Agent.Name(),
			Timestamp: now(),
		})
		r.publish(ctx, events.ToolCall{
			Header:    r.header(),
			CallID:    call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    content,
			Failed:    failed,
		})
	}
}

func (r *run) header() events.Header {
	return events.NewHeader(r.cmd.SessionID, r.cmd.Room)
}

func (r *run) publish(ctx context.Context, event events.Event) {
	if r.cmd.Topic == nil {
		return
	}
	if err := r.cmd.Topic.Publish(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to publish event", slogx.Error(err))
	}
}
