package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hopstack/toolcatalog/internal/respond"
	"github.com/hopstack/toolcatalog/jsonrpc"
)

// HeaderSessionID carries the session identifier on every request after
// initialize
const HeaderSessionID = "Mcp-Session-Id"

const (
	// DefaultSessionTimeout is how long a session may go without a request
	// or an open stream before it is discarded
	DefaultSessionTimeout = 30 * time.Minute

	// DefaultMaxSessions bounds the number of live sessions
	DefaultMaxSessions = 10000
)

// HTTPHandler serves the streamable HTTP transport: POST carries one
// JSON-RPC message, GET opens an SSE stream, and DELETE ends a session.
type HTTPHandler struct {
	server         *Server
	sessions       *SessionStore
	heartbeat      time.Duration
	sessionTimeout time.Duration
	maxSessions    int
	logger         *slog.Logger
	now            func() time.Time

	closeOnce sync.Once
	shutdown  chan struct{}
}

// HTTPOption configures an HTTPHandler
type HTTPOption func(*HTTPHandler)

// WithHeartbeatInterval sets how often idle SSE streams send a comment
func WithHeartbeatInterval(d time.Duration) HTTPOption {
	return func(h *HTTPHandler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithSessionTimeout sets how long an idle session is kept. A session with
// an open stream is never idle.
func WithSessionTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPHandler) {
		if d > 0 {
			h.sessionTimeout = d
		}
	}
}

// WithMaxSessions bounds the number of live sessions. initialize is refused
// with 503 Service Unavailable while the limit is reached.
func WithMaxSessions(n int) HTTPOption {
	return func(h *HTTPHandler) {
		if n > 0 {
			h.maxSessions = n
		}
	}
}

// NewHTTPHandler creates the HTTP transport for server
func NewHTTPHandler(server *Server, opts ...HTTPOption) *HTTPHandler {
	h := &HTTPHandler{
		server:         server,
		sessions:       NewSessionStore(),
		heartbeat:      HeartbeatInterval,
		sessionTimeout: DefaultSessionTimeout,
		maxSessions:    DefaultMaxSessions,
		logger:         server.logger,
		now:            time.Now,
		shutdown:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP dispatches on the request method
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandlePost(w, r)
	case http.MethodGet:
		h.HandleStream(w, r)
	case http.MethodDelete:
		h.HandleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Sessions returns the number of live sessions
func (h *HTTPHandler) Sessions() int {
	return h.sessions.Len()
}

// Close terminates every session and ends open streams
func (h *HTTPHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.shutdown)
	})
	for _, session := range h.sessions.Drain() {
		h.server.CloseSession(context.Background(), session)
	}
}

// HandlePost handles a single JSON-RPC message
func (h *HTTPHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "error reading request body")
		return
	}

	request, rpcErr := jsonrpc.ParseRequest(body)
	if rpcErr != nil {
		h.logger.Debug("rejected message", "code", rpcErr.Code, "error", rpcErr.Message)
		respond.JSON(w, http.StatusOK, jsonrpc.NewResponse(request.ResponseID(), nil, rpcErr))
		return
	}

	session, created, ok := h.resolveSession(w, r, request)
	if !ok {
		return
	}

	response, hasResponse := h.server.Handle(ctx, session, request)

	if created {
		// A client that is already gone never learns the session id
		if hasResponse && response.Error == nil && ctx.Err() == nil {
			h.sessions.Add(session)
		} else {
			h.server.CloseSession(context.Background(), session)
			session = nil
		}
	}

	if ctx.Err() != nil {
		return
	}

	if session != nil && (created || r.Header.Get(HeaderSessionID) != "") {
		w.Header().Set(HeaderSessionID, session.ID())
	}

	if !hasResponse {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	respond.JSON(w, http.StatusOK, response)
}

// resolveSession finds the session a POST belongs to. Without a session
// header, initialize opens a new session and anything else runs against a
// throwaway uninitialized one.
func (h *HTTPHandler) resolveSession(w http.ResponseWriter, r *http.Request, request jsonrpc.Request) (session *Session, created bool, ok bool) {
	if id := r.Header.Get(HeaderSessionID); id != "" {
		session, found := h.session(id)
		if !found {
			respond.Error(w, http.StatusNotFound, "session not found")
			return nil, false, false
		}
		return session, false, true
	}

	if request.Method == MethodInitialize && !request.IsNotification() {
		h.reap()
		if h.sessions.Len() >= h.maxSessions {
			h.logger.Warn("session limit reached", "sessions", h.sessions.Len())
			respond.Error(w, http.StatusServiceUnavailable, "too many sessions")
			return nil, false, false
		}
		return h.server.NewSession(r.Context()), true, true
	}
	return NewSession(), false, true
}

// HandleStream opens the SSE notification stream for an initialized session
func (h *HTTPHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	if session.State() != StateReady {
		respond.Error(w, http.StatusBadRequest, ErrInvalidSessionState.Error())
		return
	}

	session.openStream(h.now())
	defer func() { session.closeStream(h.now()) }()

	h.logger.Debug("stream opened", "session", session.ID())
	if err := serveStream(r.Context(), w, session, h.heartbeat, h.shutdown); err != nil {
		h.logger.Debug("stream ended", "session", session.ID(), "error", err)
		return
	}
	h.logger.Debug("stream closed", "session", session.ID())
}

// HandleDelete terminates a session
func (h *HTTPHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(HeaderSessionID)
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "missing "+HeaderSessionID+" header")
		return
	}

	session, found := h.sessions.Remove(id)
	if !found {
		respond.Error(w, http.StatusNotFound, "session not found")
		return
	}
	h.server.CloseSession(r.Context(), session)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) lookupSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := r.Header.Get(HeaderSessionID)
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "missing "+HeaderSessionID+" header")
		return nil, false
	}
	session, found := h.session(id)
	if !found {
		respond.Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

// session returns the live session with the given id and records activity
// on it. A session found idle past the timeout is discarded instead.
func (h *HTTPHandler) session(id string) (*Session, bool) {
	session, found := h.sessions.Get(id)
	if !found {
		return nil, false
	}

	now := h.now()
	if session.expired(now, h.sessionTimeout) {
		if removed, ok := h.sessions.Remove(id); ok {
			h.expire(removed)
		}
		return nil, false
	}
	session.touch(now)
	return session, true
}

// reap discards every idle session
func (h *HTTPHandler) reap() {
	for _, session := range h.sessions.Expire(h.now(), h.sessionTimeout) {
		h.expire(session)
	}
}

func (h *HTTPHandler) expire(session *Session) {
	h.logger.Debug("session expired", "session", session.ID())
	h.server.CloseSession(context.Background(), session)
}
