// Package slogx holds the attribute helpers used for structured logging across recall.
package slogx

import (
	"fmt"
	"log/slog"
)

const (
	// KeyLoggerName is the attribute key naming the component that logs.
	KeyLoggerName = "logger"
	// KeyRoom is the attribute key for the room a session belongs to.
	KeyRoom = "room"
	// KeySession is the attribute key for the session identifier.
	KeySession = "session"
)

// Error returns an "error" attribute with the error's message.
// A nil error is rendered as the empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Stringer creates an attribute from the string representation of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName returns an attribute naming the logger.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Room returns the room attribute attached to every session log line.
func Room(name string) slog.Attr {
	return slog.String(KeyRoom, name)
}

// Session returns the session identifier attribute.
func Session(id fmt.Stringer) slog.Attr {
	return slog.String(KeySession, id.String())
}

// Truncate shortens s to at most n runes, appending "..." when it was cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
