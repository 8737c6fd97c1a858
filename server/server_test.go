package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/recall/concept"
	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/session"
	"github.com/casualjim/recall/tutor"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type echoProvider struct {
	mu      sync.Mutex
	prompts []string
}

func (p *echoProvider) ChatCompletion(_ context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	var last string
	for m := range params.Thread.MessagesIter() {
		if u, ok := m.Payload.(messages.UserMessage); ok {
			last = u.Content
		}
	}
	p.mu.Lock()
	p.prompts = append(p.prompts, last)
	p.mu.Unlock()

	ch := make(chan provider.StreamEvent, 1)
	ch <- provider.Response{
		Message: messages.AssistantMessage{Content: "You said: " + last},
		Usage:   shorttermmemory.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}
	close(ch)
	return ch, nil
}

type echoModel struct{ prov provider.Provider }

func (m echoModel) Name() string                { return "echo" }
func (m echoModel) Provider() provider.Provider { return m.prov }

func newTestServer(t *testing.T, options ...Option) (*httptest.Server, *Tokens) {
	t.Helper()
	store, err := concept.NewStore(concept.Record{ID: "loops", Title: "Loops"})
	require.NoError(t, err)
	worker, err := session.NewWorker(
		session.WithModel(echoModel{prov: &echoProvider{}}),
		session.WithStore(store),
	)
	require.NoError(t, err)

	tokens := NewTokens("devkey", "secret")
	handler, err := New(worker, tokens, options...)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func roomURL(srv *httptest.Server, room, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + room
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func readTranscript(t *testing.T, conn *websocket.Conn) gjson.Result {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if typ == websocket.TextMessage {
			return gjson.ParseBytes(data)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestTokenEndpoint(t *testing.T) {
	srv, tokens := newTestServer(t, WithDevTokens(true))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"room":"r1","identity":"ada"}`, http.StatusOK},
		{"default identity", `{"room":"r1"}`, http.StatusOK},
		{"missing room", `{"identity":"ada"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/token", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}

			var body strings.Builder
			_, _ = io.Copy(&body, resp.Body)
			claims, err := tokens.Verify(gjson.Get(body.String(), "token").String())
			require.NoError(t, err)
			assert.Equal(t, "r1", claims.Room)
			assert.NotEmpty(t, claims.Identity)
		})
	}
}

func TestRoomRejectsBadTokens(t *testing.T) {
	srv, tokens := newTestServer(t)
	other, err := tokens.Issue("other-room", "ada")
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "garbage", http.StatusUnauthorized},
		{"wrong room", other, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(roomURL(srv, "room-1", tt.token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRoomConversation(t *testing.T) {
	srv, tokens := newTestServer(t)
	token, err := tokens.Issue("room-1", "ada")
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(roomURL(srv, "room-1", ""), header)
	require.NoError(t, err)
	defer conn.Close()

	intro := readTranscript(t, conn)
	assert.Equal(t, "transcript", intro.Get("type").String())
	assert.Equal(t, "agent", intro.Get("role").String())
	assert.Equal(t, tutor.Intro, intro.Get("text").String())

	t.Run("second participant is refused", func(t *testing.T) {
		require.Eventually(t, func() bool {
			_, resp, err := websocket.DefaultDialer.Dial(roomURL(srv, "room-1", token), nil)
			return err != nil && resp != nil && resp.StatusCode == http.StatusConflict
		}, 2*time.Second, 20*time.Millisecond)
	})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","text":"let's do a quiz"}`)))

	user := readTranscript(t, conn)
	assert.Equal(t, "user", user.Get("role").String())
	assert.Equal(t, "let's do a quiz", user.Get("text").String())
	assert.True(t, user.Get("final").Bool())

	reply := readTranscript(t, conn)
	assert.Equal(t, "agent", reply.Get("role").String())
	assert.Equal(t, "You said: let's do a quiz", reply.Get("text").String())
}

func TestTokenEndpointDisabledByDefault(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/token", "application/json", strings.NewReader(`{"room":"r1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
