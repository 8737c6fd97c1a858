// Package turn decides when the learner has finished an utterance.
//
// Final transcripts accumulate in a Detector. Once the speaker is silent the
// pending text is scored by Predict; a likely complete sentence is committed
// after the minimum endpointing delay, anything else after the maximum delay.
package turn

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// Config holds the endpointing settings.
type Config struct {
	// Threshold is the end of utterance probability at which a turn may commit early.
	Threshold float64
	MinDelay  time.Duration
	MaxDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold: 0.6,
		MinDelay:  500 * time.Millisecond,
		MaxDelay:  6 * time.Second,
	}
}

// trailing words that signal the speaker has more to say
var continuations = map[string]struct{}{
	"and": {}, "but": {}, "or": {}, "so": {}, "because": {}, "then": {},
	"if": {}, "the": {}, "a": {}, "an": {}, "to": {}, "of": {}, "with": {},
	"um": {}, "uh": {}, "er": {}, "like": {}, "is": {}, "my": {},
}

// Predict estimates the probability that transcript is a complete turn.
func Predict(transcript string) float64 {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return 0
	}
	if strings.HasSuffix(text, "...") || strings.HasSuffix(text, "…") {
		return 0.2
	}

	words := strings.Fields(text)
	last := strings.ToLower(strings.TrimFunc(words[len(words)-1], func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}))
	trailing := rune(text[len(text)-1])

	if _, ok := continuations[last]; ok && trailing != '?' {
		return 0.1
	}
	switch trailing {
	case '?', '!':
		return 0.95
	case '.':
		return 0.85
	case ',', ':', ';', '-':
		return 0.2
	}
	if len(words) >= 3 {
		return 0.55
	}
	return 0.4
}

// Decision is a committed user turn.
type Decision struct {
	Text        string
	Probability float64
	// EndOfUtteranceDelay runs from the end of speech to the commit.
	EndOfUtteranceDelay time.Duration
	// TranscriptionDelay runs from the end of speech to the last final transcript.
	TranscriptionDelay time.Duration
}

// Detector accumulates final transcripts of one audio stream. It is safe for
// concurrent use by the transcript reader and the audio reader.
type Detector struct {
	cfg Config

	mu             sync.Mutex
	pending        []string
	speaking       bool
	speechEnded    time.Time
	lastTranscript time.Time
}

func NewDetector(cfg Config) *Detector {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Detector{cfg: cfg}
}

// AddTranscript appends a final transcript received at.
func (d *Detector) AddTranscript(text string, at time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, text)
	d.lastTranscript = at
}

func (d *Detector) SpeechStarted() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speaking = true
}

func (d *Detector) SpeechEnded(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speaking = false
	d.speechEnded = at
}

// Pending returns the uncommitted transcript.
func (d *Detector) Pending() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.pending, " ")
}

// Check commits the pending transcript when the turn is over at now.
func (d *Detector) Check(now time.Time) (Decision, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 || d.speaking {
		return Decision{}, false
	}

	ref := d.lastTranscript
	if d.speechEnded.After(ref) {
		ref = d.speechEnded
	}
	silence := now.Sub(ref)

	text := strings.Join(d.pending, " ")
	prob := Predict(text)
	switch {
	case prob >= d.cfg.Threshold && silence >= d.cfg.MinDelay:
	case silence >= d.cfg.MaxDelay:
	default:
		return Decision{}, false
	}

	dec := Decision{Text: text, Probability: prob}
	if !d.speechEnded.IsZero() {
		dec.EndOfUtteranceDelay = now.Sub(d.speechEnded)
		if d.lastTranscript.After(d.speechEnded) {
			dec.TranscriptionDelay = d.lastTranscript.Sub(d.speechEnded)
		}
	} else {
		dec.EndOfUtteranceDelay = silence
	}

	d.pending = nil
	d.speechEnded = time.Time{}
	d.lastTranscript = time.Time{}
	return dec, true
}

// Reset drops anything pending.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	d.speaking = false
	d.speechEnded = time.Time{}
	d.lastTranscript = time.Time{}
}
