package events

import (
	"errors"
	"fmt"

	"github.com/casualjim/recall/metrics"
	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	typeSessionStarted = "session_started"
	typeUserSpeech     = "user_speech"
	typeAgentSpeech    = "agent_speech"
	typeToolCall       = "tool_call"
	typeMetrics        = "metrics"
	typeSessionEnded   = "session_ended"
	typeError          = "error"
)

// ToJSON encodes an event with a "type" discriminator.
func ToJSON(event Event) ([]byte, error) {
	var (
		typ    string
		fields map[string]any
		raw    map[string]any
	)
	switch e := event.(type) {
	case SessionStarted:
		typ = typeSessionStarted
	case UserSpeech:
		typ = typeUserSpeech
		fields = map[string]any{"text": e.Text, "final": e.Final}
	case AgentSpeech:
		typ = typeAgentSpeech
		fields = map[string]any{"text": e.Text}
	case ToolCall:
		typ = typeToolCall
		fields = map[string]any{
			"call_id":   e.CallID,
			"name":      e.Name,
			"arguments": e.Arguments,
			"result":    e.Result,
			"failed":    e.Failed,
		}
	case Metrics:
		if e.Metrics == nil {
			return nil, errors.New("metrics event without metrics")
		}
		typ = typeMetrics
		fields = map[string]any{"kind": string(e.Metrics.Kind())}
		raw = map[string]any{"metrics": e.Metrics}
	case SessionEnded:
		typ = typeSessionEnded
		raw = map[string]any{"usage": e.Usage}
	case Error:
		typ = typeError
		fields = map[string]any{"error": e.Error()}
	default:
		return nil, fmt.Errorf("unknown event type: %T", event)
	}

	h := event.EventHeader()
	result, err := sjson.SetBytes([]byte(`{}`), "type", typ)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "session_id", h.SessionID.String()); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "room", h.Room); err != nil {
		return nil, err
	}
	if !h.Timestamp.IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", h.Timestamp.String()); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		if result, err = sjson.SetBytes(result, k, v); err != nil {
			return nil, err
		}
	}
	for k, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", k, err)
		}
		if result, err = sjson.SetRawBytes(result, k, b); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// FromJSON decodes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	parsed := gjson.ParseBytes(data)
	typ := parsed.Get("type")
	if !typ.Exists() {
		return nil, errors.New("missing required field 'type'")
	}

	h, err := decodeHeader(parsed)
	if err != nil {
		return nil, err
	}

	switch typ.String() {
	case typeSessionStarted:
		return SessionStarted{Header: h}, nil
	case typeUserSpeech:
		return UserSpeech{Header: h, Text: parsed.Get("text").String(), Final: parsed.Get("final").Bool()}, nil
	case typeAgentSpeech:
		return AgentSpeech{Header: h, Text: parsed.Get("text").String()}, nil
	case typeToolCall:
		return ToolCall{
			Header:    h,
			CallID:    parsed.Get("call_id").String(),
			Name:      parsed.Get("name").String(),
			Arguments: parsed.Get("arguments").String(),
			Result:    parsed.Get("result").String(),
			Failed:    parsed.Get("failed").Bool(),
		}, nil
	case typeMetrics:
		m, err := decodeMetrics(metrics.Kind(parsed.Get("kind").String()), parsed.Get("metrics"))
		if err != nil {
			return nil, err
		}
		return Metrics{Header: h, Metrics: m}, nil
	case typeSessionEnded:
		var usage metrics.Summary
		if u := parsed.Get("usage"); u.Exists() {
			if err := json.Unmarshal([]byte(u.Raw), &usage); err != nil {
				return nil, fmt.Errorf("invalid usage: %w", err)
			}
		}
		return SessionEnded{Header: h, Usage: usage}, nil
	case typeError:
		return Error{Header: h, Err: errors.New(parsed.Get("error").String())}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", typ.String())
	}
}

func decodeHeader(parsed gjson.Result) (Header, error) {
	var h Header

	sessionID := parsed.Get("session_id")
	if !sessionID.Exists() {
		return h, errors.New("missing required field 'session_id'")
	}
	id, err := uuid.Parse(sessionID.String())
	if err != nil {
		return h, fmt.Errorf("invalid session_id: %w", err)
	}
	h.SessionID = id
	h.Room = parsed.Get("room").String()

	if ts := parsed.Get("timestamp"); ts.Exists() {
		t, err := strfmt.ParseDateTime(ts.String())
		if err != nil {
			return h, fmt.Errorf("invalid timestamp: %w", err)
		}
		h.Timestamp = t
	}
	return h, nil
}

func decodeMetrics(kind metrics.Kind, raw gjson.Result) (metrics.Metrics, error) {
	if !raw.Exists() {
		return nil, errors.New("missing required field 'metrics'")
	}

	var (
		m   metrics.Metrics
		err error
	)
	switch kind {
	case metrics.KindLLM:
		var v metrics.LLM
		err = json.Unmarshal([]byte(raw.Raw), &v)
		m = v
	case metrics.KindSTT:
		var v metrics.STT
		err = json.Unmarshal([]byte(raw.Raw), &v)
		m = v
	case metrics.KindTTS:
		var v metrics.TTS
		err = json.Unmarshal([]byte(raw.Raw), &v)
		m = v
	case metrics.KindEOU:
		var v metrics.EOU
		err = json.Unmarshal([]byte(raw.Raw), &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown metrics kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s metrics: %w", kind, err)
	}
	return m, nil
}
