// Package server routes HTTP requests to the protocol endpoint and the
// catalog responders.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hopstack/toolcatalog/catalog"
	"github.com/hopstack/toolcatalog/mcp"
)

const (
	// DefaultMaxBodyBytes bounds a POST /mcp body
	DefaultMaxBodyBytes = 1 << 20

	// DefaultRequestTimeout bounds the catalog responders. It does not apply
	// to /mcp, whose GET stream stays open indefinitely.
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the collaborators and limits of a Server
type Config struct {
	MCP    *mcp.Server
	Logger *slog.Logger

	MaxBodyBytes      int64
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration

	// SessionTimeout and MaxSessions bound the protocol session table; zero
	// values use the mcp package defaults
	SessionTimeout time.Duration
	MaxSessions    int
}

// Server contains the configured router and the streamable MCP endpoint
type Server struct {
	cfg      Config
	router   *chi.Mux
	registry *catalog.Registry
	mcp      *mcp.HTTPHandler
	logger   *slog.Logger
}

// New constructs a Server with middleware and routes configured
func New(cfg Config) (*Server, error) {
	if cfg.MCP == nil {
		return nil, errors.New("server: MCP server is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	endpoint := mcp.NewHTTPHandler(cfg.MCP,
		mcp.WithHeartbeatInterval(cfg.HeartbeatInterval),
		mcp.WithSessionTimeout(cfg.SessionTimeout),
		mcp.WithMaxSessions(cfg.MaxSessions),
	)

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		registry: cfg.MCP.Registry(),
		mcp:      endpoint,
		logger:   cfg.Logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.With(middleware.RequestSize(cfg.MaxBodyBytes)).Post("/mcp", s.mcp.HandlePost)
	s.router.Get("/mcp", s.mcp.HandleStream)
	s.router.Delete("/mcp", s.mcp.HandleDelete)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Get("/tools.json", s.handleToolsJSON)
		r.Get("/tool/{name}/schema", s.handleToolSchema)
		r.Get("/categories", s.handleCategories)
		r.Get("/health", s.handleHealth)
	})

	return s, nil
}

// Router exposes the root HTTP handler for the server
func (s *Server) Router() http.Handler { return s.router }

// Close terminates every protocol session and ends their streams. Call it
// before http.Server.Shutdown so that open streams do not hold it up.
func (s *Server) Close() {
	s.mcp.Close()
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
