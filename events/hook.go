package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/casualjim/recall/metrics"
	"github.com/casualjim/recall/pkg/slogx"
)

// Hook receives session events. There is no no-op base implementation:
// implementations decide explicitly what to do with every event type.
type Hook interface {
	OnSessionStarted(context.Context, SessionStarted)
	OnUserSpeech(context.Context, UserSpeech)
	OnAgentSpeech(context.Context, AgentSpeech)
	OnToolCall(context.Context, ToolCall)
	OnMetrics(context.Context, Metrics)
	OnSessionEnded(context.Context, SessionEnded)
	OnError(context.Context, Error)
}

// Dispatch calls the hook method matching the event type.
func Dispatch(ctx context.Context, hook Hook, event Event) {
	switch e := event.(type) {
	case SessionStarted:
		hook.OnSessionStarted(ctx, e)
	case UserSpeech:
		hook.OnUserSpeech(ctx, e)
	case AgentSpeech:
		hook.OnAgentSpeech(ctx, e)
	case ToolCall:
		hook.OnToolCall(ctx, e)
	case Metrics:
		hook.OnMetrics(ctx, e)
	case SessionEnded:
		hook.OnSessionEnded(ctx, e)
	case Error:
		hook.OnError(ctx, e)
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}

// LoggingHook writes every event to logger. Events are not tagged with their
// room or session, so logger should already carry those.
func LoggingHook(logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingHook{logger: logger.With(slogx.LoggerName("events"))}
}

type loggingHook struct {
	logger *slog.Logger
}

func (h *loggingHook) OnSessionStarted(ctx context.Context, e SessionStarted) {
	h.logger.InfoContext(ctx, "session started")
}

func (h *loggingHook) OnUserSpeech(ctx context.Context, e UserSpeech) {
	if !e.Final {
		h.logger.DebugContext(ctx, "interim transcript", slog.String("text", e.Text))
		return
	}
	h.logger.InfoContext(ctx, "User said", slog.String("text", e.Text))
}

func (h *loggingHook) OnAgentSpeech(ctx context.Context, e AgentSpeech) {
	h.logger.InfoContext(ctx, "Agent said", slog.String("text", slogx.Truncate(e.Text, 100)))
}

func (h *loggingHook) OnToolCall(ctx context.Context, e ToolCall) {
	h.logger.InfoContext(ctx, "tool called",
		slog.String("tool", e.Name),
		slog.String("arguments", e.Arguments),
		slog.Bool("failed", e.Failed),
	)
}

func (h *loggingHook) OnMetrics(ctx context.Context, e Metrics) {
	metrics.Log(ctx, h.logger, e.Metrics)
}

func (h *loggingHook) OnSessionEnded(ctx context.Context, e SessionEnded) {
	metrics.LogSummary(ctx, h.logger, e.Usage)
}

func (h *loggingHook) OnError(ctx context.Context, e Error) {
	h.logger.ErrorContext(ctx, "session error", slogx.Error(e.Err))
}

// CompositeHook fans events out to several hooks in order.
type CompositeHook []Hook

func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(hooks)
}

func (c CompositeHook) OnSessionStarted(ctx context.Context, e SessionStarted) {
	for h := range slices.Values(c) {
		h.OnSessionStarted(ctx, e)
	}
}

func (c CompositeHook) OnUserSpeech(ctx context.Context, e UserSpeech) {
	for h := range slices.Values(c) {
		h.OnUserSpeech(ctx, e)
	}
}

func (c CompositeHook) OnAgentSpeech(ctx context.Context, e AgentSpeech) {
	for h := range slices.Values(c) {
		h.OnAgentSpeech(ctx, e)
	}
}

func (c CompositeHook) OnToolCall(ctx context.Context, e ToolCall) {
	for h := range slices.Values(c) {
		h.OnToolCall(ctx, e)
	}
}

func (c CompositeHook) OnMetrics(ctx context.Context, e Metrics) {
	for h := range slices.Values(c) {
		h.OnMetrics(ctx, e)
	}
}

func (c CompositeHook) OnSessionEnded(ctx context.Context, e SessionEnded) {
	for h := range slices.Values(c) {
		h.OnSessionEnded(ctx, e)
	}
}

func (c CompositeHook) OnError(ctx context.Context, e Error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, e)
	}
}
