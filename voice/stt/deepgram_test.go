package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deepgramServer(t *testing.T, handle func(*websocket.Conn)) (*httptest.Server, <-chan *http.Request) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDeepgramStream(t *testing.T) {
	srv, requests := deepgramServer(t, func(conn *websocket.Conn) {
		typ, audio, err := conn.ReadMessage()
		if err != nil || typ != websocket.BinaryMessage || len(audio) != 3200 {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata","request_id":"abc"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","start":0.0,"duration":0.1,"is_final":false,"channel":{"alternatives":[{"transcript":"let's","confidence":0.5}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","start":0.0,"duration":0.1,"is_final":true,"channel":{"alternatives":[{"transcript":"Let's do a quiz.","confidence":0.98}]}}`))
		_, _, _ = conn.ReadMessage()
	})

	dg := NewDeepgram(DeepgramConfig{APIKey: "secret", URL: wsURL(srv)})
	stream, err := dg.Stream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	req := <-requests
	assert.Equal(t, "Token secret", req.Header.Get("Authorization"))
	q := req.URL.Query()
	assert.Equal(t, "nova-2", q.Get("model"))
	assert.Equal(t, "en-US", q.Get("language"))
	assert.Equal(t, "linear16", q.Get("encoding"))
	assert.Equal(t, "16000", q.Get("sample_rate"))
	assert.Equal(t, "true", q.Get("smart_format"))
	assert.Equal(t, "true", q.Get("interim_results"))

	require.NoError(t, stream.SendAudio(make([]byte, 3200)))
	assert.Equal(t, 100*time.Millisecond, stream.AudioDuration())

	var got []Transcript
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case tr := <-stream.Transcripts():
			got = append(got, tr)
		case <-timeout:
			t.Fatal("timed out waiting for transcripts")
		}
	}

	assert.Equal(t, "let's", got[0].Text)
	assert.False(t, got[0].Final)
	assert.Equal(t, "Let's do a quiz.", got[1].Text)
	assert.True(t, got[1].Final)
	assert.InDelta(t, 0.98, got[1].Confidence, 0.001)
	assert.Equal(t, 100*time.Millisecond, got[1].Duration)
}

func TestDeepgramClose(t *testing.T) {
	closeFrame := make(chan string, 1)
	srv, _ := deepgramServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			closeFrame <- string(msg)
		}
	})

	stream, err := NewDeepgram(DeepgramConfig{URL: wsURL(srv)}).Stream(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	assert.ErrorIs(t, stream.SendAudio([]byte{0, 0}), ErrStreamClosed)

	select {
	case msg := <-closeFrame:
		assert.JSONEq(t, `{"type":"CloseStream"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw CloseStream")
	}

	select {
	case _, ok := <-stream.Transcripts():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("transcripts channel not closed")
	}
}

func TestDeepgramContextCancel(t *testing.T) {
	srv, _ := deepgramServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewDeepgram(DeepgramConfig{URL: wsURL(srv)}).Stream(ctx)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		return stream.SendAudio([]byte{0, 0}) != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeepgramDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewDeepgram(DeepgramConfig{URL: wsURL(srv)}).Stream(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		ok   bool
	}{
		{"results", `{"type":"Results","channel":{"alternatives":[{"transcript":"hi"}]}}`, true},
		{"empty transcript", `{"type":"Results","channel":{"alternatives":[{"transcript":""}]}}`, false},
		{"utterance end", `{"type":"UtteranceEnd"}`, false},
		{"not json", `nope`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseResult([]byte(tt.msg))
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestPCMDuration(t *testing.T) {
	assert.Equal(t, time.Second, PCMDuration(32000, 16000))
	assert.Equal(t, time.Duration(0), PCMDuration(100, 0))
}
