// Package messages defines the conversation entries exchanged between the
// participant, the tutor agent, and the language model.
package messages

import (
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// ModelMessage is implemented by every payload that can appear in a conversation thread.
type ModelMessage interface {
	modelMessage()
}

// UserMessage is a committed utterance or chat line from the participant.
type UserMessage struct {
	Content string `json:"content"`
}

func (UserMessage) modelMessage() {}

// AssistantMessage is text the agent says back.
type AssistantMessage struct {
	Content string `json:"content"`
}

func (AssistantMessage) modelMessage() {}

// ToolCallData is one function invocation requested by the model.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallMessage is an assistant turn that asks for tools instead of speaking.
type ToolCallMessage struct {
	ToolCalls []ToolCallData `json:"tool_calls"`
}

func (ToolCallMessage) modelMessage() {}

// ToolResponse carries the text a tool produced back to the model.
type ToolResponse struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func (ToolResponse) modelMessage() {}

// Message wraps a payload with the run it belongs to and its origin.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Payload   T               `json:"payload"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Widen erases the concrete payload type so the message can be stored in a thread.
func Widen[T ModelMessage](m Message[T]) Message[ModelMessage] {
	return Message[ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
	}
}
