package metrics

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUsageCollector(t *testing.T) {
	c := NewUsageCollector()
	c.Collect(LLM{PromptTokens: 100, CompletionTokens: 20})
	c.Collect(LLM{PromptTokens: 50, CompletionTokens: 10})
	c.Collect(TTS{Characters: 42})
	c.Collect(STT{AudioDuration: 3 * time.Second})
	c.Collect(EOU{EndOfUtteranceDelay: time.Second})

	assert.Equal(t, Summary{
		LLMPromptTokens:     150,
		LLMCompletionTokens: 30,
		TTSCharactersCount:  42,
		STTAudioDuration:    3 * time.Second,
	}, c.Summary())
}

func TestUsageCollectorConcurrent(t *testing.T) {
	c := NewUsageCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Collect(TTS{Characters: 2})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), c.Summary().TTSCharactersCount)
}

func TestLog(t *testing.T) {
	tests := []struct {
		metrics Metrics
		want    string
	}{
		{LLM{Model: "llama", PromptTokens: 7}, "LLM metrics"},
		{STT{AudioDuration: time.Second}, "STT metrics"},
		{TTS{Characters: 3}, "TTS metrics"},
		{EOU{EndOfUtteranceDelay: time.Millisecond}, "EOU metrics"},
	}
	for _, tt := range tests {
		t.Run(string(tt.metrics.Kind()), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			Log(context.Background(), logger, tt.metrics)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LogSummary(context.Background(), logger, Summary{LLMPromptTokens: 12, TTSCharactersCount: 5})
	assert.Contains(t, buf.String(), `"llm_prompt_tokens":12`)
	assert.Contains(t, buf.String(), `"tts_characters_count":5`)
}
