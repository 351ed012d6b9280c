package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/lightify2mqtt/internal/audit"
	bridge "github.com/nerrad567/lightify2mqtt/internal/bridges/lightify"
	"github.com/nerrad567/lightify2mqtt/internal/device"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests in Close.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the part of the bridge the API drives.
// It is satisfied by *lightify.Bridge from the bridges package.
type Bridge interface {
	Status() bridge.BridgeStatus
	Execute(ctx context.Context, target string, payload []byte, source string) error
	Wake()
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Bridge   Bridge
	Registry *device.Registry

	// AuditRepo is optional; /audit answers 404 without it.
	AuditRepo audit.Repository

	Version string
}

// Server is the HTTP API server.
//
// Thread Safety: all methods are safe for concurrent use.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    Bridge
	registry  *device.Registry
	auditRepo audit.Repository
	version   string
	hub       *Hub

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	started  time.Time
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("device registry is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		registry:  deps.Registry,
		auditRepo: deps.AuditRepo,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
		started:   time.Now(),
	}, nil
}

// Handler returns the router. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// BroadcastState sends dev to WebSocket clients subscribed to
// ChannelStateChanged. It is meant for the bridge's state change hook.
func (s *Server) BroadcastState(dev device.Device) {
	s.hub.Broadcast(ChannelStateChanged, newDeviceView(&dev))
}

// Start binds the listener and serves in the background.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the hub and shuts the server down gracefully.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
