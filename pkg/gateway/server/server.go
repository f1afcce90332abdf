package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vango-go/vai-spy/pkg/core/types"
	"github.com/vango-go/vai-spy/pkg/gateway/config"
	"github.com/vango-go/vai-spy/pkg/gateway/handlers"
	"github.com/vango-go/vai-spy/pkg/gateway/mw"
	"github.com/vango-go/vai-spy/pkg/metrics"
)

// Deps are the collaborators the routes expose.
type Deps struct {
	Runtime      handlers.Runtime
	Matches      handlers.Matches
	Metrics      *metrics.Metrics
	Capabilities func() map[string]types.Capability
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Deps

	draining atomic.Bool
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Capabilities: s.deps.Capabilities,
		Draining:     s.draining.Load,
	})
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	hub := s.deps.Runtime.Hub()
	s.mux.Handle("GET /v1/state", handlers.StateHandler{Hub: hub})
	s.mux.Handle("GET /v1/state/ws", handlers.StateStreamHandler{
		Hub:    hub,
		Config: s.cfg,
		Logger: s.logger,
	})
	s.mux.Handle("POST /v1/runtime/toggle", handlers.RuntimeToggleHandler{Runtime: s.deps.Runtime})
	s.mux.Handle("POST /v1/error/clear", handlers.ErrorClearHandler{Runtime: s.deps.Runtime})

	s.mux.Handle("/v1/match", handlers.MatchHandler{
		Matches: s.deps.Matches,
		Runtime: s.deps.Runtime,
		Logger:  s.logger,
	})
	s.mux.Handle("POST /v1/match/phase", handlers.MatchPhaseHandler{
		Matches: s.deps.Matches,
		Runtime: s.deps.Runtime,
	})
	s.mux.Handle("GET /v1/match/threads/{aiID}", handlers.ThreadHandler{Matches: s.deps.Matches})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// SetDraining marks the server as shutting down so /readyz reports 503.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
