// Package session runs the voice conversation of one room.
//
// A Worker prewarms what every session shares: the concept store, the language
// model, the speech services and the event broker. For each room it starts a
// Session, which owns the tutor state and the conversation thread of that room.
//
// Inside a session inbound audio flows through a noise gate and the voice
// activity detector into speech recognition. Final transcripts collect in a turn
// detector until the learner is done speaking; committed utterances and chat
// messages then queue for a single turn loop, so at most one reply is being
// produced at any time. Replies are spoken sentence by sentence.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/casualjim/recall/agent"
	"github.com/casualjim/recall/events"
	"github.com/casualjim/recall/executor"
	"github.com/casualjim/recall/internal/broker"
	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/metrics"
	"github.com/casualjim/recall/pkg/slogx"
	"github.com/casualjim/recall/tutor"
	"github.com/casualjim/recall/voice/noise"
	"github.com/casualjim/recall/voice/stt"
	"github.com/casualjim/recall/voice/tts"
	"github.com/casualjim/recall/voice/turn"
	"github.com/casualjim/recall/voice/vad"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

const (
	turnCheckInterval = 100 * time.Millisecond
	minSentenceLength = 1
)

type Session struct {
	id     uuid.UUID
	worker *Worker
	room   Room
	tutor  *tutor.Tutor
	agent  agent.Agent
	thread *shorttermmemory.Aggregator
	topic  broker.Topic
	hook   events.Hook
	usage  *metrics.UsageCollector
	logger *slog.Logger

	mu       sync.Mutex
	shutdown []func(context.Context)
}

func newSession(ctx context.Context, w *Worker, room Room) (*Session, error) {
	id := uuid.Must(uuid.NewV7())
	logger := w.logger.With(slogx.Room(room.Name()), slogx.Session(id))

	t := tutor.New(w.store, tutor.NewState()).WithLogger(logger)
	ag, err := t.NewAgent(w.model, w.temperature)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:     id,
		worker: w,
		room:   room,
		tutor:  t,
		agent:  ag,
		thread: shorttermmemory.New(),
		usage:  metrics.NewUsageCollector(),
		logger: logger.With(slogx.LoggerName("session")),
	}
	s.hook = events.NewCompositeHook(append([]events.Hook{events.LoggingHook(logger)}, w.hooks...)...)
	s.topic = &sessionTopic{
		Topic:   w.broker.Topic(ctx, broker.SessionTopic(room.Name())),
		session: s,
	}
	return s, nil
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Room() string {
	return s.room.Name()
}

// State is the tutor state of the session.
func (s *Session) State() *tutor.State {
	return s.tutor.State()
}

// Usage returns the usage collected so far.
func (s *Session) Usage() metrics.Summary {
	return s.usage.Summary()
}

// Thread is the conversation history of the session.
func (s *Session) Thread() *shorttermmemory.Aggregator {
	return s.thread
}

// OnShutdown registers fn to run when the session ends, before SessionEnded is
// published with the usage summary. Callbacks run in registration order.
func (s *Session) OnShutdown(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = append(s.shutdown, fn)
}

// Run greets the learner and holds the conversation until the participant
// leaves or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.worker.release(s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.tutor.State().Reset()
	s.publish(ctx, events.SessionStarted{Header: s.header()})

	s.greet(ctx)

	turns := make(chan string, 8)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.turnLoop(ctx, turns)
	}()
	go func() {
		defer wg.Done()
		s.chatLoop(ctx, turns)
	}()

	s.listen(ctx, turns)
	cancel()
	wg.Wait()

	s.finish(context.WithoutCancel(ctx))
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Session) finish(ctx context.Context) {
	s.mu.Lock()
	callbacks := s.shutdown
	s.shutdown = nil
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(ctx)
	}
	s.publish(ctx, events.SessionEnded{Header: s.header(), Usage: s.usage.Summary()})
}

// greet speaks the intro and records it as the first assistant message.
func (s *Session) greet(ctx context.Context) {
	s.thread.AddAssistantMessage(messages.Message[messages.AssistantMessage]{
		RunID:     s.id,
		TurnID:    s.thread.ID(),
		Payload:   messages.AssistantMessage{Content: tutor.Intro},
		Sender:    tutor.AgentName,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	})
	s.say(ctx, tutor.Intro)
}

func (s *Session) chatLoop(ctx context.Context, turns chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-s.room.Chat():
			if !ok {
				return
			}
			if text == "" {
				continue
			}
			if !enqueue(ctx, turns, text) {
				return
			}
		}
	}
}

func enqueue(ctx context.Context, turns chan<- string, text string) bool {
	select {
	case turns <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

// turnLoop answers utterances one at a time.
func (s *Session) turnLoop(ctx context.Context, turns <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-turns:
			s.answer(ctx, text)
		}
	}
}

func (s *Session) answer(ctx context.Context, text string) {
	s.publish(ctx, events.UserSpeech{Header: s.header(), Text: text, Final: true})
	s.sendTranscript(ctx, Transcript{Role: RoleUser, Text: text, Final: true})

	cmd, err := executor.NewCommand(s.agent, s.thread, text)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	cmd.Sender = "user"
	cmd.SessionID = s.id
	cmd.Room = s.room.Name()
	cmd.Topic = s.topic
	cmd.ContextVariables = s.tutor.ContextVars
	if s.worker.maxTurns > 0 {
		cmd.MaxTurns = s.worker.maxTurns
	}

	reply, err := executor.Run(ctx, cmd)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(ctx, err)
		}
		return
	}
	if strings.TrimSpace(reply) == "" {
		s.fail(ctx, ErrEmptyReply)
		return
	}
	s.say(ctx, reply)
}

// say relays text to the room and speaks it one sentence at a time.
func (s *Session) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	s.publish(ctx, events.AgentSpeech{Header: s.header(), Text: text})
	s.sendTranscript(ctx, Transcript{Role: RoleAgent, Text: text, Final: true})

	synth := s.worker.synthesizer
	if synth == nil {
		return
	}
	for _, sentence := range tts.SplitSentences(text, minSentenceLength) {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		pcm, err := synth.Synthesize(ctx, sentence)
		if err != nil {
			if ctx.Err() == nil {
				s.fail(ctx, err)
			}
			continue
		}
		elapsed := time.Since(started)
		s.publish(ctx, events.Metrics{Header: s.header(), Metrics: metrics.TTS{
			Characters:    utf8.RuneCountInString(sentence),
			AudioDuration: stt.PCMDuration(len(pcm), s.worker.sampleRate),
			TTFB:          elapsed,
			Duration:      elapsed,
		}})
		if len(pcm) == 0 {
			continue
		}
		if err := s.room.SendAudio(ctx, pcm); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "failed to send audio", slogx.Error(err))
		}
	}
}

// listen runs the audio pipeline until the participant leaves.
func (s *Session) listen(ctx context.Context, turns chan<- string) {
	gate := noise.NewGate(s.worker.gate)
	activity, err := vad.NewDetector(s.worker.vad)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	endpoint := turn.NewDetector(s.worker.turn)

	var (
		stream    stt.Stream
		streaming bool
	)
	if s.worker.transcriber != nil {
		stream, err = s.worker.transcriber.Stream(ctx)
		if err != nil {
			s.fail(ctx, err)
		} else {
			streaming = true
		}
	}
	if streaming {
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.readTranscripts(ctx, stream, endpoint)
		}()
		defer func() {
			_ = stream.Close()
			<-done
			s.publish(context.WithoutCancel(ctx), events.Metrics{Header: s.header(), Metrics: metrics.STT{
				AudioDuration: stream.AudioDuration(),
				Streamed:      true,
			}})
		}()
	}

	ticker := time.NewTicker(turnCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.room.Audio():
			if !ok {
				return
			}
			frame = gate.Process(frame)
			switch activity.Process(frame).Type {
			case vad.SpeechStart:
				endpoint.SpeechStarted()
			case vad.SpeechEnd:
				endpoint.SpeechEnded(time.Now())
			}
			if streaming {
				if err := stream.SendAudio(frame); err != nil {
					s.fail(ctx, err)
					streaming = false
				}
			}
		case now := <-ticker.C:
			dec, ok := endpoint.Check(now)
			if !ok {
				continue
			}
			s.publish(ctx, events.Metrics{Header: s.header(), Metrics: metrics.EOU{
				EndOfUtteranceDelay: dec.EndOfUtteranceDelay,
				TranscriptionDelay:  dec.TranscriptionDelay,
			}})
			if !enqueue(ctx, turns, dec.Text) {
				return
			}
		}
	}
}

func (s *Session) readTranscripts(ctx context.Context, stream stt.Stream, endpoint *turn.Detector) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-stream.Transcripts():
			if !ok {
				return
			}
			if tr.Final {
				endpoint.AddTranscript(tr.Text, time.Now())
			}
			s.publish(ctx, events.UserSpeech{Header: s.header(), Text: tr.Text})
			s.sendTranscript(ctx, Transcript{Role: RoleUser, Text: tr.Text})
		}
	}
}

func (s *Session) sendTranscript(ctx context.Context, t Transcript) {
	if err := s.room.SendTranscript(ctx, t); err != nil && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "failed to send transcript", slogx.Error(err))
	}
}

func (s *Session) fail(ctx context.Context, err error) {
	s.publish(ctx, events.Error{Header: s.header(), Err: err})
}

func (s *Session) header() events.Header {
	return events.NewHeader(s.id, s.room.Name())
}

func (s *Session) publish(ctx context.Context, event events.Event) {
	if err := s.topic.Publish(ctx, event); err != nil && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "failed to publish event", slogx.Error(err))
	}
}

// sessionTopic logs and collects every event of the session before it goes
// out on the broker.
type sessionTopic struct {
	broker.Topic
	session *Session
}

func (t *sessionTopic) Publish(ctx context.Context, event events.Event) error {
	if m, ok := event.(events.Metrics); ok {
		t.session.usage.Collect(m.Metrics)
	}
	events.Dispatch(ctx, t.session.hook, event)
	return t.Topic.Publish(ctx, event)
}
