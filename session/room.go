package session

import "context"

// Role names who a transcript belongs to.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Transcript is text relayed to the participant alongside the audio.
type Transcript struct {
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Room is the participant side of a session.
type Room interface {
	Name() string
	// Audio delivers inbound 16 bit little endian mono PCM frames. It is closed
	// when the participant leaves, which ends the session.
	Audio() <-chan []byte
	// Chat delivers typed messages. A nil channel means the room has no chat.
	Chat() <-chan string
	SendAudio(ctx context.Context, pcm []byte) error
	SendTranscript(ctx context.Context, t Transcript) error
}
