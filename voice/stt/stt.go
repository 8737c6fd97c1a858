// Package stt streams PCM audio to a speech recognizer and delivers transcripts.
package stt

import (
	"context"
	"time"
)

// Transcript is a recognition result. Interim results may be revised by
// later ones until a Final result for the same stretch of audio arrives.
type Transcript struct {
	Text       string
	Final      bool
	Confidence float64
	// Start and Duration locate the recognized audio in the stream.
	Start    time.Duration
	Duration time.Duration
}

// Stream is a single recognition session.
type Stream interface {
	// SendAudio queues a frame of 16 bit little endian PCM audio.
	SendAudio(pcm []byte) error
	// Transcripts is closed when the stream ends.
	Transcripts() <-chan Transcript
	// AudioDuration reports how much audio has been sent so far.
	AudioDuration() time.Duration
	Close() error
}

// Transcriber opens recognition streams.
type Transcriber interface {
	Stream(ctx context.Context) (Stream, error)
}

// PCMDuration is the playing time of a mono 16 bit PCM buffer of n bytes.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
