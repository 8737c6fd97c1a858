package provider

import (
	"context"
	"fmt"

	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/tool"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Provider performs chat completions against a language model service.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// Model names a language model and the provider that serves it.
type Model interface {
	Name() string
	Provider() Provider
}

// CompletionParams is one request to the language model.
type CompletionParams struct {
	RunID        uuid.UUID
	Instructions string
	Thread       *shorttermmemory.Aggregator
	Model        Model
	Tools        []tool.Definition
	// Temperature is sent only when set.
	Temperature *float64
	Stream      bool

	_ struct{}
}

// StreamEvent is a Chunk, Response or Error.
type StreamEvent interface {
	streamEvent()
}

// Chunk is an incremental piece of assistant text.
type Chunk struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Text      string          `json:"text"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Chunk) streamEvent() {}

// Response is the final message of a completion: either a messages.AssistantMessage
// or a messages.ToolCallMessage.
type Response struct {
	RunID     uuid.UUID             `json:"run_id"`
	TurnID    uuid.UUID             `json:"turn_id"`
	Message   messages.ModelMessage `json:"message"`
	Usage     shorttermmemory.Usage `json:"usage"`
	Timestamp strfmt.DateTime       `json:"timestamp"`
}

func (Response) streamEvent() {}

// Error reports a failed completion.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, turn_id: %s, error: %v", e.RunID, e.TurnID, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
