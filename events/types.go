package events

import (
	"time"

	"github.com/casualjim/recall/metrics"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Event is implemented by every session event.
type Event interface {
	EventHeader() Header
}

// Header identifies the session an event belongs to.
type Header struct {
	SessionID uuid.UUID       `json:"session_id"`
	Room      string          `json:"room"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// NewHeader stamps a header with the current time.
func NewHeader(sessionID uuid.UUID, room string) Header {
	return Header{
		SessionID: sessionID,
		Room:      room,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
}

func (h Header) EventHeader() Header { return h }

type SessionStarted struct {
	Header
}

// UserSpeech is a transcript of the participant. Final is set once the
// utterance is committed to the conversation.
type UserSpeech struct {
	Header
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// AgentSpeech is text the tutor spoke.
type AgentSpeech struct {
	Header
	Text string `json:"text"`
}

// ToolCall records one tool invocation requested by the model.
type ToolCall struct {
	Header
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Failed    bool   `json:"failed"`
}

type Metrics struct {
	Header
	Metrics metrics.Metrics `json:"metrics"`
}

// SessionEnded carries the usage totals of the session.
type SessionEnded struct {
	Header
	Usage metrics.Summary `json:"usage"`
}

// Error reports a failure inside the session. The session keeps running.
type Error struct {
	Header
	Err error `json:"error"`
}

func (e Error) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}
