package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/recall/pkg/slogx"
	"github.com/casualjim/recall/session"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const (
	writeWait       = 10 * time.Second
	audioBufferSize = 256
)

// wsRoom adapts a participant websocket to a session room. Binary frames carry
// PCM audio, text frames carry JSON messages.
type wsRoom struct {
	name     string
	identity string
	conn     *websocket.Conn
	audio    chan []byte
	chat     chan string
	logger   *slog.Logger

	writeMu sync.Mutex
}

func newRoom(name, identity string, conn *websocket.Conn, logger *slog.Logger) *wsRoom {
	return &wsRoom{
		name:     name,
		identity: identity,
		conn:     conn,
		audio:    make(chan []byte, audioBufferSize),
		chat:     make(chan string, 8),
		logger:   logger,
	}
}

func (r *wsRoom) Name() string         { return r.name }
func (r *wsRoom) Audio() <-chan []byte { return r.audio }
func (r *wsRoom) Chat() <-chan string  { return r.chat }

type transcriptMessage struct {
	Type string `json:"type"`
	session.Transcript
}

func (r *wsRoom) SendTranscript(_ context.Context, t session.Transcript) error {
	b, err := json.Marshal(transcriptMessage{Type: "transcript", Transcript: t})
	if err != nil {
		return err
	}
	return r.write(websocket.TextMessage, b)
}

func (r *wsRoom) SendAudio(_ context.Context, pcm []byte) error {
	return r.write(websocket.BinaryMessage, pcm)
}

func (r *wsRoom) write(messageType int, data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteMessage(messageType, data)
}

// readLoop feeds inbound frames to the session until the connection drops.
// Audio frames are dropped while the session lags behind.
func (r *wsRoom) readLoop(ctx context.Context) {
	defer close(r.audio)
	defer close(r.chat)

	for {
		typ, data, err := r.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.DebugContext(ctx, "participant connection closed", slogx.Error(err))
			}
			return
		}

		switch typ {
		case websocket.BinaryMessage:
			select {
			case r.audio <- data:
			default:
				r.logger.WarnContext(ctx, "dropping audio frame", slog.Int("bytes", len(data)))
			}
		case websocket.TextMessage:
			if !gjson.ValidBytes(data) {
				continue
			}
			msg := gjson.ParseBytes(data)
			if msg.Get("type").String() != "chat" {
				continue
			}
			text := msg.Get("text").String()
			if text == "" {
				continue
			}
			select {
			case r.chat <- text:
			case <-ctx.Done():
				return
			}
		}
	}
}
