// Package metrics describes what the voice pipeline measures during a session
// and totals it into a usage summary.
package metrics

import (
	"time"
)

// Kind identifies a metrics variant on the wire.
type Kind string

const (
	KindLLM Kind = "llm"
	KindSTT Kind = "stt"
	KindTTS Kind = "tts"
	KindEOU Kind = "eou"
)

// Metrics is one of LLM, STT, TTS or EOU.
type Metrics interface {
	Kind() Kind
}

// LLM measures one chat completion.
type LLM struct {
	RequestID        string        `json:"request_id"`
	Model            string        `json:"model"`
	Duration         time.Duration `json:"duration"`
	TTFT             time.Duration `json:"ttft"`
	PromptTokens     int64         `json:"prompt_tokens"`
	CompletionTokens int64         `json:"completion_tokens"`
	TotalTokens      int64         `json:"total_tokens"`
}

func (LLM) Kind() Kind { return KindLLM }

// STT measures audio sent to speech recognition.
type STT struct {
	AudioDuration time.Duration `json:"audio_duration"`
	Streamed      bool          `json:"streamed"`
}

func (STT) Kind() Kind { return KindSTT }

// TTS measures one synthesis request.
type TTS struct {
	Characters    int           `json:"characters"`
	AudioDuration time.Duration `json:"audio_duration"`
	TTFB          time.Duration `json:"ttfb"`
	Duration      time.Duration `json:"duration"`
}

func (TTS) Kind() Kind { return KindTTS }

// EOU measures how long the turn detector waited before committing an utterance.
type EOU struct {
	EndOfUtteranceDelay time.Duration `json:"end_of_utterance_delay"`
	TranscriptionDelay  time.Duration `json:"transcription_delay"`
}

func (EOU) Kind() Kind { return KindEOU }
