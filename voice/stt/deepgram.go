package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/casualjim/recall/pkg/slogx"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const (
	DeepgramURL       = "wss://api.deepgram.com/v1/listen"
	DefaultModel      = "nova-2"
	DefaultLanguage   = "en-US"
	DefaultSampleRate = 16000
)

// ErrStreamClosed is returned when audio is sent to a closed stream.
var ErrStreamClosed = errors.New("stt: stream closed")

// DeepgramConfig holds the Deepgram live transcription settings.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	// URL overrides the listen endpoint.
	URL string
}

// Deepgram transcribes audio through the Deepgram live streaming API.
type Deepgram struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewDeepgram(cfg DeepgramConfig) *Deepgram {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.URL == "" {
		cfg.URL = DeepgramURL
	}
	return &Deepgram{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: slog.Default().With(slogx.LoggerName("stt.deepgram")),
	}
}

func (d *Deepgram) listenURL() (string, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.cfg.Model)
	q.Set("language", d.cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stream connects to Deepgram and starts reading results.
func (d *Deepgram) Stream(ctx context.Context) (Stream, error) {
	endpoint, err := d.listenURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+d.cfg.APIKey)

	conn, resp, err := d.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram connection failed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram connection failed: %w", err)
	}

	s := &deepgramStream{
		conn:        conn,
		sampleRate:  d.cfg.SampleRate,
		transcripts: make(chan Transcript, 16),
		done:        make(chan struct{}),
		logger:      d.logger,
	}
	go s.readResults()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	d.logger.DebugContext(ctx, "connected", slog.String("model", d.cfg.Model))
	return s, nil
}

type deepgramStream struct {
	conn        *websocket.Conn
	sampleRate  int
	transcripts chan Transcript
	done        chan struct{}
	logger      *slog.Logger

	mu        sync.Mutex
	closed    bool
	sentBytes int
}

func (s *deepgramStream) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	s.sentBytes += len(pcm)
	return nil
}

func (s *deepgramStream) Transcripts() <-chan Transcript {
	return s.transcripts
}

func (s *deepgramStream) AudioDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PCMDuration(s.sentBytes, s.sampleRate)
}

func (s *deepgramStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return s.conn.Close()
}

func (s *deepgramStream) readResults() {
	defer close(s.transcripts)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.logger.Warn("read failed", slogx.Error(err))
				}
			}
			return
		}

		tr, ok := parseResult(message)
		if !ok {
			continue
		}
		select {
		case s.transcripts <- tr:
		case <-s.done:
			return
		}
	}
}

// parseResult extracts the best alternative from a Deepgram Results message.
// Metadata, speech started and utterance end messages are skipped.
func parseResult(message []byte) (Transcript, bool) {
	if !gjson.ValidBytes(message) {
		return Transcript{}, false
	}
	res := gjson.ParseBytes(message)
	if res.Get("type").String() != "Results" {
		return Transcript{}, false
	}
	alt := res.Get("channel.alternatives.0")
	text := alt.Get("transcript").String()
	if text == "" {
		return Transcript{}, false
	}
	return Transcript{
		Text:       text,
		Final:      res.Get("is_final").Bool(),
		Confidence: alt.Get("confidence").Float(),
		Start:      seconds(res.Get("start").Float()),
		Duration:   seconds(res.Get("duration").Float()),
	}, true
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
