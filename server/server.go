// Package server exposes tutor sessions over HTTP: a health check, room token
// issuance and one websocket per participant.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/casualjim/recall/pkg/slogx"
	"github.com/casualjim/recall/session"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Server struct {
	worker    *session.Worker
	tokens    *Tokens
	devTokens bool
	router    *mux.Router
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// Option configures a Server.
type Option = opts.Option[Server]

// WithDevTokens mounts POST /token, which hands out a room token to anyone who asks.
var WithDevTokens = opts.ForName[Server, bool]("devTokens")

func New(worker *session.Worker, tokens *Tokens, options ...Option) (*Server, error) {
	s := &Server{
		worker: worker,
		tokens: tokens,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: slog.Default().With(slogx.LoggerName("server")),
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	if s.devTokens {
		s.router.HandleFunc("/token", s.tokenHandler).Methods(http.MethodPost)
	}
	s.router.HandleFunc("/rooms/{room}", s.roomHandler).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "listening", slog.String("address", addr))
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errC; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.worker.ActiveSessions(),
		"concepts":        s.worker.Store().Len(),
	})
}

type tokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Room == "" {
		writeError(w, http.StatusBadRequest, errors.New("room is required"))
		return
	}
	if req.Identity == "" {
		req.Identity = "learner"
	}

	token, err := s.tokens.Issue(req.Room, req.Identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func (s *Server) roomHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["room"]
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("%w: missing token", ErrInvalidToken))
		return
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if claims.Room != name {
		writeError(w, http.StatusForbidden, fmt.Errorf("%w: token is not valid for room %s", ErrInvalidToken, name))
		return
	}
	if _, busy := s.worker.Session(name); busy {
		writeError(w, http.StatusConflict, session.ErrRoomBusy)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "websocket upgrade failed", slogx.Error(err))
		return
	}
	defer conn.Close()

	logger := s.logger.With(slogx.Room(name), slog.String("identity", claims.Identity))
	room := newRoom(name, claims.Identity, conn, logger)

	sess, err := s.worker.Dispatch(ctx, room)
	if err != nil {
		logger.WarnContext(ctx, "failed to start session", slogx.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go room.readLoop(ctx)

	logger.InfoContext(ctx, "participant joined")
	if err := sess.Run(ctx); err != nil {
		logger.WarnContext(ctx, "session ended with error", slogx.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	logger.InfoContext(ctx, "participant left")
}
