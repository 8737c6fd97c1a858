// Package mode defines the three tutoring interaction styles and how free-form
// names are mapped onto them.
package mode

import (
	"fmt"
	"strings"
)

// Mode is the interaction style of a tutoring session.
type Mode int

const (
	// Unset is the mode of a session that has not picked a style yet.
	Unset Mode = iota
	// Learn has the tutor explain concepts with examples and analogies.
	Learn
	// Quiz has the tutor ask questions to test the user's knowledge.
	Quiz
	// TeachBack has the user explain a concept and the tutor give feedback.
	TeachBack
)

// All lists the selectable modes in presentation order.
var All = []Mode{Learn, Quiz, TeachBack}

var tokens = map[Mode]string{
	Unset:     "unset",
	Learn:     "learn",
	Quiz:      "quiz",
	TeachBack: "teach_back",
}

var aliases = map[string]Mode{
	"learn":      Learn,
	"quiz":       Quiz,
	"teach_back": TeachBack,
	"teachback":  TeachBack,
	"teach":      TeachBack,
}

// String returns the canonical token of the mode.
func (m Mode) String() string {
	if s, ok := tokens[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// IsSet reports whether the mode is one of the selectable modes.
func (m Mode) IsSet() bool {
	return m == Learn || m == Quiz || m == TeachBack
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// InvalidError is returned by Parse when the input names no mode.
type InvalidError struct {
	Input      string
	Normalized string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid mode %q: choose one of learn, quiz, teach_back", e.Input)
}

// Normalize lower-cases and trims raw, and turns spaces and hyphens into underscores.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// Parse maps a human-friendly spelling onto a mode.
//
//	Parse("Learn")      // Learn
//	Parse("TEACH BACK") // TeachBack
//	Parse("teach-back") // TeachBack
//	Parse("teachback")  // TeachBack
//	Parse("quiz mode")  // *InvalidError
func Parse(raw string) (Mode, error) {
	norm := Normalize(raw)
	if m, ok := aliases[norm]; ok {
		return m, nil
	}
	return Unset, &InvalidError{Input: raw, Normalized: norm}
}
