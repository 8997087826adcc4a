package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hopstack/toolcatalog/catalog"
	"github.com/hopstack/toolcatalog/jsonrpc"
)

var (
	// ErrInvalidSessionState is returned for any method other than
	// initialize on a session that has not been initialized
	ErrInvalidSessionState = errors.New("session not initialized")

	// ErrToolNotFound is returned by tools/call for names missing from the
	// registry
	ErrToolNotFound = errors.New("tool not found")
)

// Server answers protocol requests against an immutable tool registry
type Server struct {
	registry     *catalog.Registry
	info         ServerInfo
	instructions string
	logger       *slog.Logger
	metrics      *Metrics

	initResult InitializeResult
	toolsList  ToolsListResult
}

// ServerOption configures a Server
type ServerOption func(*Server) error

// WithLogger sets the logger used by the server
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithServerInfo sets the name and version reported by initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) error {
		if name == "" {
			return errors.New("server name must not be empty")
		}
		s.info = ServerInfo{Name: name, Version: version}
		return nil
	}
}

// WithInstructions sets the usage hint returned by initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) error {
		s.instructions = instructions
		return nil
	}
}

// WithMetrics records request metrics
func WithMetrics(metrics *Metrics) ServerOption {
	return func(s *Server) error {
		s.metrics = metrics
		return nil
	}
}

// NewServer creates a Server for registry
func NewServer(registry *catalog.Registry, opts ...ServerOption) (*Server, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}

	s := &Server{
		registry: registry,
		info:     ServerInfo{Name: "toolcatalog", Version: "dev"},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	tools, err := json.Marshal(registry)
	if err != nil {
		return nil, fmt.Errorf("encoding tools: %w", err)
	}

	s.initResult = InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}
	s.toolsList = ToolsListResult{Tools: tools}

	return s, nil
}

// Registry returns the catalog served by s
func (s *Server) Registry() *catalog.Registry {
	return s.registry
}

// NewSession opens a session. Close it with CloseSession.
func (s *Server) NewSession(ctx context.Context) *Session {
	session := NewSession()
	s.metrics.sessionOpened(ctx)
	s.logger.Debug("session opened", "session", session.ID())
	return session
}

// CloseSession terminates session. Closing it again has no effect.
func (s *Server) CloseSession(ctx context.Context, session *Session) {
	if !session.close() {
		return
	}
	s.metrics.sessionClosed(ctx)
	s.logger.Debug("session closed",
		"session", session.ID(),
		"state", session.State(),
		"age", time.Since(session.created).Round(time.Millisecond),
	)
}

// Handler binds session to s, for transports that carry a single session
func (s *Server) Handler(session *Session) jsonrpc.Handler {
	return jsonrpc.HandlerFunc(func(ctx context.Context, request jsonrpc.Request) (jsonrpc.Response, bool) {
		return s.Handle(ctx, session, request)
	})
}

// Handle processes one request for session. The boolean result is false for
// notifications, which never get a response.
func (s *Server) Handle(ctx context.Context, session *Session, request jsonrpc.Request) (jsonrpc.Response, bool) {
	start := time.Now()

	if request.IsNotification() {
		s.handleNotification(session, request)
		s.metrics.recordRequest(ctx, request.Method, OutcomeNotification, time.Since(start))
		return jsonrpc.Response{}, false
	}

	result, rpcErr := s.dispatch(ctx, session, request)

	outcome := OutcomeOK
	if rpcErr != nil {
		outcome = OutcomeError
		s.logger.Debug("request failed",
			"session", session.ID(),
			"method", request.Method,
			"id", request.ResponseID().Value(),
			"code", rpcErr.Code,
			"error", rpcErr.Message,
		)
	}
	s.metrics.recordRequest(ctx, request.Method, outcome, time.Since(start))

	return jsonrpc.NewResponse(request.ResponseID(), result, rpcErr), true
}

func (s *Server) dispatch(ctx context.Context, session *Session, request jsonrpc.Request) (jsonrpc.Result, *jsonrpc.Error) {
	// Before initialize every other method fails the same way, known or not
	if request.Method != MethodInitialize && session.State() != StateReady {
		return nil, toRPCError(ErrInvalidSessionState)
	}

	var handler func(context.Context, *Session, json.RawMessage) (jsonrpc.Result, error)
	switch request.Method {
	case MethodInitialize:
		handler = s.handleInitialize
	case MethodPing:
		handler = s.handlePing
	case MethodToolsList:
		handler = s.handleToolsList
	case MethodToolsCall:
		handler = s.handleToolsCall
	default:
		return nil, jsonrpc.Errorf(jsonrpc.ErrMethodNotFound, "Method not found: %s", request.Method)
	}

	result, err := handler(ctx, session, request.Params)
	if err != nil {
		return nil, toRPCError(err)
	}
	return result, nil
}

func (s *Server) handleNotification(session *Session, request jsonrpc.Request) {
	switch request.Method {
	case NotificationInitialized:
		s.logger.Debug("client initialized", "session", session.ID(), "state", session.State())
	case NotificationCancelled:
		// Requests complete synchronously, so there is nothing to cancel
		s.logger.Debug("client cancelled request", "session", session.ID())
	default:
		s.logger.Debug("ignoring notification", "session", session.ID(), "method", request.Method)
	}
}

func (s *Server) handleInitialize(_ context.Context, session *Session, params json.RawMessage) (jsonrpc.Result, error) {
	if !isObject(params) {
		return nil, invalidParams("initialize params must be an object")
	}

	var p InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams("protocolVersion must be a string")
	}
	if p.ProtocolVersion == nil {
		return nil, invalidParams("protocolVersion is required")
	}
	// Client metadata is opaque; only its presence is checked
	if isAbsent(p.Capabilities) {
		return nil, invalidParams("capabilities is required")
	}
	if isAbsent(p.ClientInfo) {
		return nil, invalidParams("clientInfo is required")
	}

	if session.initialize(ProtocolVersion) {
		s.logger.Info("session initialized",
			"session", session.ID(),
			"requested_version", *p.ProtocolVersion,
			"protocol_version", ProtocolVersion,
		)
	}

	return s.initResult, nil
}

func (s *Server) handlePing(context.Context, *Session, json.RawMessage) (jsonrpc.Result, error) {
	return PingResult{}, nil
}

func (s *Server) handleToolsList(context.Context, *Session, json.RawMessage) (jsonrpc.Result, error) {
	return s.toolsList, nil
}

func (s *Server) handleToolsCall(ctx context.Context, session *Session, params json.RawMessage) (jsonrpc.Result, error) {
	if !isObject(params) {
		return nil, invalidParams("tools/call params must be an object")
	}

	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "name" {
			return nil, invalidParams("name must be a string")
		}
		return nil, invalidParams("tools/call params are malformed")
	}
	if p.Name == nil {
		return nil, invalidParams("name is required")
	}

	name := *p.Name
	if !s.registry.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	s.metrics.recordDispatch(ctx, name)
	s.logger.Info("tool dispatched", "session", session.ID(), "tool", name)

	return DispatchResult{
		Tool:   name,
		Status: StatusDispatched,
		Note:   DispatchNote,
	}, nil
}

type paramsError struct {
	msg string
}

func (e *paramsError) Error() string {
	return e.msg
}

func invalidParams(msg string) error {
	return &paramsError{msg: msg}
}

// toRPCError maps handler failures onto JSON-RPC error objects. Only
// messages are exposed, never the underlying Go values.
func toRPCError(err error) *jsonrpc.Error {
	var paramsErr *paramsError
	switch {
	case errors.Is(err, ErrInvalidSessionState):
		return jsonrpc.Errorf(jsonrpc.ErrInternal, "%s", ErrInvalidSessionState.Error())
	case errors.Is(err, ErrToolNotFound):
		return jsonrpc.Errorf(jsonrpc.ErrInvalidParams, "%s", err.Error())
	case errors.As(err, &paramsErr):
		return jsonrpc.Errorf(jsonrpc.ErrInvalidParams, "Invalid params: %s", paramsErr.msg)
	default:
		return jsonrpc.NewError(jsonrpc.ErrInternal, nil)
	}
}

func isAbsent(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

func isObject(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
