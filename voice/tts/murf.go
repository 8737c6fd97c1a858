package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/casualjim/recall/pkg/slogx"
	"github.com/goccy/go-json"
)

const (
	MurfURL      = "https://api.murf.ai/v1/speech/stream"
	DefaultVoice = "en-US-matthew"
	DefaultStyle = "Conversational"
)

// MurfConfig holds the Murf text to speech settings.
type MurfConfig struct {
	APIKey     string
	Voice      string
	Style      string
	SampleRate int
	// URL overrides the streaming synthesis endpoint.
	URL string
	// Client defaults to an http.Client with a 30s timeout.
	Client *http.Client
}

// Murf synthesizes speech through the Murf streaming API.
type Murf struct {
	cfg    MurfConfig
	logger *slog.Logger
}

func NewMurf(cfg MurfConfig) *Murf {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Style == "" {
		cfg.Style = DefaultStyle
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.URL == "" {
		cfg.URL = MurfURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Murf{
		cfg:    cfg,
		logger: slog.Default().With(slogx.LoggerName("tts.murf")),
	}
}

type murfRequest struct {
	VoiceID     string `json:"voiceId"`
	Style       string `json:"style,omitempty"`
	Text        string `json:"text"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sampleRate"`
	ChannelType string `json:"channelType"`
}

// Synthesize returns the PCM audio for text. Empty text yields no audio.
func (m *Murf) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	body, err := json.Marshal(murfRequest{
		VoiceID:     m.cfg.Voice,
		Style:       m.cfg.Style,
		Text:        text,
		Format:      "PCM",
		SampleRate:  m.cfg.SampleRate,
		ChannelType: "MONO",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("api-key", m.cfg.APIKey)

	resp, err := m.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("murf api error %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	m.logger.DebugContext(ctx, "synthesized", slog.Int("characters", len(text)), slog.Int("bytes", len(pcm)))
	return pcm, nil
}
