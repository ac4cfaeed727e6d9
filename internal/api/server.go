package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/auth"
	"github.com/openlumen/lumen-core/internal/display"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
	"github.com/openlumen/lumen-core/internal/infrastructure/influxdb"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
	"github.com/openlumen/lumen-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is how long to wait for in-flight requests
// during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps contains the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Static config.StaticConfig
	Logger *logging.Logger

	// Auth is the session authority backing every protected route.
	Auth *auth.Service

	// Audit serves read access to the audit trail.
	Audit audit.Repository

	// Cell holds the live display state.
	Cell *display.Cell

	// MQTT mirrors display state to the broker. Optional.
	MQTT *mqtt.Client

	// Influx records operational telemetry. Optional.
	Influx *influxdb.Client

	Version string
}

// Server is the Lumen HTTP API server.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	staticCfg config.StaticConfig
	logger    *logging.Logger
	auth      *auth.Service
	audit     audit.Repository
	cell      *display.Cell
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	version   string

	httpServer *http.Server
	cancel     context.CancelFunc

	// viewers tracks open display sockets for shutdown and health reporting.
	viewers   map[*displayConn]struct{}
	viewersMu sync.Mutex
}

// New creates a new API server. It validates required dependencies and
// returns an error if any are missing.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("api: logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("api: auth service is required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("api: audit repository is required")
	}
	if deps.Cell == nil {
		return nil, fmt.Errorf("api: display cell is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		staticCfg: deps.Static,
		logger:    deps.Logger.With("component", "api"),
		auth:      deps.Auth,
		audit:     deps.Audit,
		cell:      deps.Cell,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		version:   deps.Version,
		viewers:   make(map[*displayConn]struct{}),
	}, nil
}

// Start begins listening for HTTP requests. It returns immediately; the
// server runs in a background goroutine until Close is called.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(ctx),
		ReadTimeout:  s.cfg.GetReadTimeout(),
		WriteTimeout: s.cfg.GetWriteTimeout(),
		IdleTimeout:  s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Close shuts the server down gracefully, draining in-flight requests and
// closing open display sockets.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.httpServer == nil {
		return nil
	}

	s.closeViewers()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is accepting requests.
func (s *Server) HealthCheck(_ context.Context) error {
	if s.httpServer == nil {
		return fmt.Errorf("api: server not started")
	}
	return nil
}

// ViewerCount returns the number of open display sockets.
func (s *Server) ViewerCount() int {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()
	return len(s.viewers)
}

func (s *Server) registerViewer(c *displayConn) {
	s.viewersMu.Lock()
	s.viewers[c] = struct{}{}
	s.viewersMu.Unlock()

	if s.influx != nil {
		s.influx.CountConnection(1)
	}
	s.logger.Debug("display viewer connected", "viewers", s.ViewerCount())
}

func (s *Server) unregisterViewer(c *displayConn) {
	s.viewersMu.Lock()
	_, existed := s.viewers[c]
	delete(s.viewers, c)
	s.viewersMu.Unlock()

	if !existed {
		return
	}
	if s.influx != nil {
		s.influx.CountConnection(-1)
	}
	s.logger.Debug("display viewer disconnected", "viewers", s.ViewerCount())
}

// closeViewers tears down all open display sockets during shutdown.
func (s *Server) closeViewers() {
	s.viewersMu.Lock()
	conns := make([]*displayConn, 0, len(s.viewers))
	for c := range s.viewers {
		conns = append(conns, c)
	}
	s.viewersMu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
}
