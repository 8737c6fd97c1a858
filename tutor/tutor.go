// Package tutor routes a learner between the learn, quiz and teach back modes
// and serves the concept material the conversation is about.
//
// A Tutor owns the State of one session. Its two operations are exposed to the
// language model as the switch_mode and get_concept tools; both always answer
// with text and never fail, so a bad argument from the model becomes a reply the
// learner hears instead of an error.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casualjim/recall/concept"
	"github.com/casualjim/recall/mode"
	"github.com/casualjim/recall/pkg/slogx"
)

type Tutor struct {
	store  *concept.Store
	state  *State
	logger *slog.Logger
}

// New creates a tutor over a shared concept store and a session state.
// A nil store behaves as an empty one; a nil state starts a fresh session.
func New(store *concept.Store, state *State) *Tutor {
	if store == nil {
		store = concept.Empty()
	}
	if state == nil {
		state = NewState()
	}
	return &Tutor{
		store:  store,
		state:  state,
		logger: slog.Default().With(slogx.LoggerName("tutor")),
	}
}

// WithLogger returns a copy of the tutor that logs to logger.
func (t *Tutor) WithLogger(logger *slog.Logger) *Tutor {
	cp := *t
	cp.logger = logger.With(slogx.LoggerName("tutor"))
	return &cp
}

func (t *Tutor) State() *State {
	return t.state
}

func (t *Tutor) Store() *concept.Store {
	return t.store
}

// SwitchMode moves the session into the mode named by raw and answers with the
// greeting of that mode's persona. An unrecognized mode leaves the state as is
// and answers with the valid choices.
func (t *Tutor) SwitchMode(ctx context.Context, raw string) string {
	m, err := mode.Parse(raw)
	if err != nil {
		var invalid *mode.InvalidError
		if errors.As(err, &invalid) {
			t.logger.InfoContext(ctx, "rejected mode", slog.String("input", invalid.Input))
		}
		return fmt.Sprintf("Sorry, '%s' is not a valid mode. Please choose 'learn', 'quiz', or 'teach back'.", raw)
	}

	t.state.setMode(m)
	t.logger.InfoContext(ctx, "switching mode", slogx.Stringer("mode", m))

	persona, _ := mode.PersonaFor(m)
	return persona.Greeting
}

// GetConcept selects the concept with the given id and answers with its title,
// summary and sample question. Unknown ids leave the selection unchanged.
func (t *Tutor) GetConcept(ctx context.Context, id string) string {
	rec, ok := t.store.Lookup(id)
	if !ok {
		t.logger.InfoContext(ctx, "unknown concept", slog.String("concept", id))
		return fmt.Sprintf("I don't have information about '%s'. Available concepts are: %s.", id, t.availableConcepts())
	}

	t.state.setConcept(rec)
	t.logger.InfoContext(ctx, "retrieved concept", slog.String("title", rec.Title))
	return fmt.Sprintf("Concept: %s\n\nSummary: %s\n\nSample Question: %s", rec.Title, rec.Summary, rec.SampleQuestion)
}

func (t *Tutor) availableConcepts() string {
	ids := t.store.IDs()
	if len(ids) == 0 {
		ids = concept.CanonicalIDs
	}
	return joinWithAnd(ids)
}

// joinWithAnd renders "a, b, and c".
func joinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
