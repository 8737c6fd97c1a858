package tutor

import (
	"sync"

	"github.com/casualjim/recall/concept"
	"github.com/casualjim/recall/mode"
)

// State is the mode and concept selection of one session. The zero value is
// a fresh session: mode unset and no concept.
type State struct {
	mu      sync.Mutex
	mode    mode.Mode
	concept *concept.Record
}

// Snapshot is a point in time copy of State.
type Snapshot struct {
	Mode    mode.Mode       `json:"mode"`
	Concept *concept.Record `json:"concept,omitempty"`
}

func NewState() *State {
	return &State{}
}

// Reset returns the state to the start of a session.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode.Unset
	s.concept = nil
}

func (s *State) Mode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Concept returns the selected concept, if any.
func (s *State) Concept() (concept.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.concept == nil {
		return concept.Record{}, false
	}
	return *s.concept, true
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Mode: s.mode}
	if s.concept != nil {
		c := *s.concept
		snap.Concept = &c
	}
	return snap
}

func (s *State) setMode(m mode.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *State) setConcept(rec concept.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concept = &rec
}
