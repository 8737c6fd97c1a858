package metrics

import (
	"sync"
	"time"
)

// Summary totals the billable usage of a session.
type Summary struct {
	LLMPromptTokens     int64         `json:"llm_prompt_tokens"`
	LLMCompletionTokens int64         `json:"llm_completion_tokens"`
	TTSCharactersCount  int64         `json:"tts_characters_count"`
	STTAudioDuration    time.Duration `json:"stt_audio_duration"`
}

// UsageCollector accumulates metrics into a Summary. It is safe for concurrent use.
type UsageCollector struct {
	mu      sync.Mutex
	summary Summary
}

func NewUsageCollector() *UsageCollector {
	return &UsageCollector{}
}

// Collect adds m to the running totals. Metrics without a usage component are ignored.
func (c *UsageCollector) Collect(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := m.(type) {
	case LLM:
		c.summary.LLMPromptTokens += m.PromptTokens
		c.summary.LLMCompletionTokens += m.CompletionTokens
	case TTS:
		c.summary.TTSCharactersCount += int64(m.Characters)
	case STT:
		c.summary.STTAudioDuration += m.AudioDuration
	}
}

// Summary returns the totals so far.
func (c *UsageCollector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}
