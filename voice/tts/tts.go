// Package tts turns reply text into PCM audio.
package tts

import (
	"context"
	"strings"
	"unicode"
)

// Synthesizer renders text as 16 bit little endian mono PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SplitSentences breaks text into sentences at terminal punctuation followed by
// whitespace, or at line breaks. Sentences shorter than minLen runes are merged
// into the one that follows so synthesis is not spent on fragments.
func SplitSentences(text string, minLen int) []string {
	var (
		sentences []string
		pending   strings.Builder
		current   strings.Builder
	)

	flush := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if s == "" {
			return
		}
		if pending.Len() > 0 {
			pending.WriteByte(' ')
		}
		pending.WriteString(s)
		if len([]rune(pending.String())) >= minLen {
			sentences = append(sentences, pending.String())
			pending.Reset()
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if !isTerminal(r) {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()

	if pending.Len() > 0 {
		if n := len(sentences); n > 0 {
			sentences[n-1] += " " + pending.String()
		} else {
			sentences = append(sentences, pending.String())
		}
	}
	return sentences
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', ';':
		return true
	}
	return false
}
