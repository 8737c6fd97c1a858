package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casualjim/recall/concept"
	"github.com/casualjim/recall/events"
	"github.com/casualjim/recall/internal/broker"
	"github.com/casualjim/recall/internal/registry"
	"github.com/casualjim/recall/pkg/slogx"
	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/voice/noise"
	"github.com/casualjim/recall/voice/stt"
	"github.com/casualjim/recall/voice/tts"
	"github.com/casualjim/recall/voice/turn"
	"github.com/casualjim/recall/voice/vad"
	"github.com/fogfish/opts"
)

// ErrRoomBusy is returned when a room already has an active session.
var ErrRoomBusy = errors.New("session: room already has an active session")

// ErrNoModel is returned by NewWorker when no language model was configured.
var ErrNoModel = errors.New("session: no model configured")

// ErrEmptyReply is published when the model finishes a turn without saying anything.
var ErrEmptyReply = errors.New("session: the tutor returned an empty reply")

// DefaultTemperature is the sampling temperature of the tutor model.
const DefaultTemperature = 0.7

// Worker holds the resources shared by every session of the process and
// starts one session per room.
type Worker struct {
	store       *concept.Store
	model       provider.Model
	temperature float64
	transcriber stt.Transcriber
	synthesizer tts.Synthesizer
	broker      broker.Broker
	vad         vad.Config
	gate        noise.GateConfig
	turn        turn.Config
	sampleRate  int
	maxTurns    int
	hooks       []events.Hook

	sessions registry.Registry[*Session]
	logger   *slog.Logger
}

// Option configures a Worker.
type Option = opts.Option[Worker]

var (
	WithStore       = opts.ForName[Worker, *concept.Store]("store")
	WithModel       = opts.ForName[Worker, provider.Model]("model")
	WithTemperature = opts.ForName[Worker, float64]("temperature")
	WithTranscriber = opts.ForName[Worker, stt.Transcriber]("transcriber")
	WithSynthesizer = opts.ForName[Worker, tts.Synthesizer]("synthesizer")
	WithBroker      = opts.ForName[Worker, broker.Broker]("broker")
	WithVAD         = opts.ForName[Worker, vad.Config]("vad")
	WithNoiseGate   = opts.ForName[Worker, noise.GateConfig]("gate")
	WithTurn        = opts.ForName[Worker, turn.Config]("turn")
	WithSampleRate  = opts.ForName[Worker, int]("sampleRate")
	// WithMaxTurns bounds the completions a single utterance may trigger.
	WithMaxTurns = opts.ForName[Worker, int]("maxTurns")
)

// WithLogger sets the parent logger of every session.
func WithLogger(logger *slog.Logger) Option {
	return opts.Type[Worker](func(w *Worker) error {
		w.logger = logger
		return nil
	})
}

// WithHooks adds hooks that see every event of every session, in publishing
// order and before the broker does.
func WithHooks(hooks ...events.Hook) Option {
	return opts.Type[Worker](func(w *Worker) error {
		w.hooks = append(w.hooks, hooks...)
		return nil
	})
}

// NewWorker prewarms the shared resources. Speech recognition and synthesis are
// optional; without them sessions only take chat messages and answer in text.
func NewWorker(options ...Option) (*Worker, error) {
	w := &Worker{
		temperature: DefaultTemperature,
		vad:         vad.Load(),
		gate:        noise.DefaultGateConfig(),
		turn:        turn.DefaultConfig(),
		sampleRate:  16000,
		sessions:    registry.New[*Session](),
	}
	if err := opts.Apply(w, options); err != nil {
		return nil, err
	}
	if w.model == nil {
		return nil, ErrNoModel
	}
	if w.store == nil {
		w.store = concept.Empty()
	}
	if w.broker == nil {
		w.broker = broker.Local()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.vad.SampleRate = w.sampleRate
	w.gate.SampleRate = w.sampleRate
	if err := w.vad.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) Broker() broker.Broker {
	return w.broker
}

func (w *Worker) Store() *concept.Store {
	return w.store
}

// Session returns the active session of a room.
func (w *Worker) Session(room string) (*Session, bool) {
	return w.sessions.Get(room)
}

// ActiveSessions counts the rooms with a running session.
func (w *Worker) ActiveSessions() int {
	return w.sessions.Len()
}

// Dispatch creates the session of a room. Only one session may exist per room;
// it is released when its Run returns.
func (w *Worker) Dispatch(ctx context.Context, room Room) (*Session, error) {
	if room == nil {
		return nil, errors.New("session: room is required")
	}

	var buildErr error
	s, loaded := w.sessions.GetOrAdd(room.Name(), func() *Session {
		s, err := newSession(ctx, w, room)
		if err != nil {
			buildErr = err
			return nil
		}
		return s
	})
	if loaded {
		return nil, fmt.Errorf("%w: %s", ErrRoomBusy, room.Name())
	}
	if buildErr != nil {
		w.sessions.Del(room.Name())
		return nil, fmt.Errorf("failed to create session for %s: %w", room.Name(), buildErr)
	}

	w.logger.InfoContext(ctx, "session dispatched", slogx.Room(room.Name()), slogx.Session(s.ID()))
	return s, nil
}

// Run dispatches the session of room and runs it to completion.
func (w *Worker) Run(ctx context.Context, room Room) error {
	s, err := w.Dispatch(ctx, room)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func (w *Worker) release(s *Session) {
	if cur, ok := w.sessions.Get(s.room.Name()); ok && cur == s {
		w.sessions.Del(s.room.Name())
	}
}
