package metrics

import (
	"context"
	"log/slog"
)

// Log writes m to logger at info level.
func Log(ctx context.Context, logger *slog.Logger, m Metrics) {
	switch m := m.(type) {
	case LLM:
		logger.InfoContext(ctx, "LLM metrics",
			slog.String("model", m.Model),
			slog.Duration("duration", m.Duration),
			slog.Duration("ttft", m.TTFT),
			slog.Int64("prompt_tokens", m.PromptTokens),
			slog.Int64("completion_tokens", m.CompletionTokens),
		)
	case STT:
		logger.InfoContext(ctx, "STT metrics",
			slog.Duration("audio_duration", m.AudioDuration),
			slog.Bool("streamed", m.Streamed),
		)
	case TTS:
		logger.InfoContext(ctx, "TTS metrics",
			slog.Int("characters", m.Characters),
			slog.Duration("audio_duration", m.AudioDuration),
			slog.Duration("ttfb", m.TTFB),
		)
	case EOU:
		logger.InfoContext(ctx, "EOU metrics",
			slog.Duration("end_of_utterance_delay", m.EndOfUtteranceDelay),
			slog.Duration("transcription_delay", m.TranscriptionDelay),
		)
	}
}

// LogSummary writes the usage totals of a finished session.
func LogSummary(ctx context.Context, logger *slog.Logger, s Summary) {
	logger.InfoContext(ctx, "Usage",
		slog.Int64("llm_prompt_tokens", s.LLMPromptTokens),
		slog.Int64("llm_completion_tokens", s.LLMCompletionTokens),
		slog.Int64("tts_characters_count", s.TTSCharactersCount),
		slog.Duration("stt_audio_duration", s.STTAudioDuration),
	)
}
