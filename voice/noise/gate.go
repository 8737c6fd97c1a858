// Package noise suppresses background noise in inbound PCM audio.
package noise

import (
	"encoding/binary"
	"time"

	"github.com/casualjim/recall/voice/vad"
)

// GateConfig holds the noise gate settings.
type GateConfig struct {
	SampleRate int
	// Threshold is the RMS level below which a frame counts as noise.
	Threshold float64
	// Hold keeps the gate open for a while after the last loud frame so word
	// endings are not clipped.
	Hold time.Duration
	// Attenuation scales gated frames; 0 mutes them.
	Attenuation float64
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		SampleRate:  16000,
		Threshold:   0.004,
		Hold:        200 * time.Millisecond,
		Attenuation: 0,
	}
}

// Gate is a noise gate over a single stream of 16 bit little endian PCM.
// It is not safe for concurrent use.
type Gate struct {
	cfg       GateConfig
	remaining time.Duration
	open      bool
}

func NewGate(cfg GateConfig) *Gate {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Gate{cfg: cfg}
}

// Open reports whether the last processed frame passed through.
func (g *Gate) Open() bool {
	return g.open
}

// Process returns frame with noise attenuated. The input is not modified.
func (g *Gate) Process(frame []byte) []byte {
	n := len(frame) / 2
	if n == 0 {
		return frame
	}
	dur := time.Duration(n) * time.Second / time.Duration(g.cfg.SampleRate)

	switch {
	case vad.RMS(frame) >= g.cfg.Threshold:
		g.remaining = g.cfg.Hold
		g.open = true
	case g.remaining > 0:
		g.remaining -= dur
		g.open = true
	default:
		g.open = false
	}
	if g.open {
		return frame
	}
	return attenuate(frame, g.cfg.Attenuation)
}

func attenuate(frame []byte, gain float64) []byte {
	out := make([]byte, len(frame))
	if gain <= 0 {
		return out
	}
	for i := 0; i+1 < len(frame); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i:])))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(s*gain)))
	}
	return out
}
