package messages

import (
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWiden(t *testing.T) {
	runID := uuid.New()
	ts := strfmt.DateTime(time.Now())
	msg := Message[UserMessage]{
		RunID:     runID,
		Payload:   UserMessage{Content: "teach back please"},
		Sender:    "user",
		Timestamp: ts,
	}

	wide := Widen(msg)
	assert.Equal(t, runID, wide.RunID)
	assert.Equal(t, "user", wide.Sender)
	assert.Equal(t, ts, wide.Timestamp)

	payload, ok := wide.Payload.(UserMessage)
	assert.True(t, ok)
	assert.Equal(t, "teach back please", payload.Content)
}
