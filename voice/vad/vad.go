// Package vad detects when a speaker starts and stops talking from the energy
// of PCM frames.
//
// Detection uses two thresholds with hysteresis: speech starts once enough
// consecutive frames are louder than the speech threshold, and ends once enough
// consecutive frames fall below the lower silence threshold. Levels between the
// two thresholds never flip the state.
package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// EventType tells whether a frame changed the speaking state.
type EventType int

const (
	None EventType = iota
	SpeechStart
	SpeechEnd
)

func (e EventType) String() string {
	switch e {
	case None:
		return "none"
	case SpeechStart:
		return "speech_start"
	case SpeechEnd:
		return "speech_end"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Event is the outcome of processing one frame.
type Event struct {
	Type EventType
	// SpeechDuration is the length of the utterance that just ended.
	SpeechDuration time.Duration
}

// Config holds the detector thresholds. RMS levels are relative to full scale.
type Config struct {
	SampleRate       int
	SpeechThreshold  float64
	SilenceThreshold float64
	MinSpeech        time.Duration
	MinSilence       time.Duration
}

// Load returns the default configuration for 16kHz mono audio. It is meant to be
// called once per process and shared by every session.
func Load() Config {
	return Config{
		SampleRate:       16000,
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		MinSpeech:        60 * time.Millisecond,
		MinSilence:       550 * time.Millisecond,
	}
}

// Validate reports a configuration the detector cannot run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: invalid sample rate %d", c.SampleRate)
	}
	if c.SilenceThreshold > c.SpeechThreshold {
		return fmt.Errorf("vad: silence threshold %.4f above speech threshold %.4f", c.SilenceThreshold, c.SpeechThreshold)
	}
	return nil
}

// Detector tracks the speaking state of one audio stream. It is not safe for
// concurrent use.
type Detector struct {
	cfg Config

	inSpeech bool
	loud     time.Duration
	quiet    time.Duration
	speech   time.Duration
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Speaking reports whether the detector is inside an utterance.
func (d *Detector) Speaking() bool {
	return d.inSpeech
}

// Process feeds a frame of 16 bit little endian PCM.
func (d *Detector) Process(frame []byte) Event {
	n := len(frame) / 2
	if n == 0 {
		return Event{}
	}
	dur := time.Duration(n) * time.Second / time.Duration(d.cfg.SampleRate)
	level := RMS(frame)

	if d.inSpeech {
		d.speech += dur
		if level >= d.cfg.SilenceThreshold {
			d.quiet = 0
			return Event{}
		}
		d.quiet += dur
		if d.quiet < d.cfg.MinSilence {
			return Event{}
		}
		ev := Event{Type: SpeechEnd, SpeechDuration: d.speech - d.quiet}
		d.Reset()
		return ev
	}

	if level < d.cfg.SpeechThreshold {
		d.loud = 0
		return Event{}
	}
	d.loud += dur
	if d.loud < d.cfg.MinSpeech {
		return Event{}
	}
	d.inSpeech = true
	d.speech = d.loud
	d.loud = 0
	return Event{Type: SpeechStart}
}

func (d *Detector) Reset() {
	d.inSpeech = false
	d.loud = 0
	d.quiet = 0
	d.speech = 0
}

// RMS is the root mean square level of a 16 bit PCM frame in [0, 1].
func RMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[2*i:]))) / math.MaxInt16
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
