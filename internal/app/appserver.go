package app

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/makinje16/AirSignals/internal/service/web"
	"github.com/makinje16/AirSignals/internal/shared/globalstate"
	"github.com/makinje16/AirSignals/internal/shared/logger"
	"github.com/makinje16/AirSignals/internal/shared/types"
	"github.com/makinje16/AirSignals/internal/signaling"
)

const shutdownTimeout = 5 * time.Second

// AppServer is the application's main struct.
type AppServer struct {
	cfg *types.Config

	registry *signaling.Registry
	handler  *web.Handler
	server   *web.Server
	status   *globalstate.StatusManager

	statsInterval time.Duration
	ready         chan struct{}

	waitGroup sync.WaitGroup
	stopOnce  sync.Once
}

// New wires the room registry and the web service from cfg.
func New(cfg *types.Config) *AppServer {
	status := globalstate.GlobalStatus
	status.Set(globalstate.StatusInitializing)

	registry := signaling.NewRegistry(cfg.RoomConf.MaxClients, cfg.RoomConf.MaxWaiting)
	handler := web.NewHandler(registry, status, cfg.SocketConf)

	return &AppServer{
		cfg:           cfg,
		registry:      registry,
		handler:       handler,
		server:        web.NewServer(cfg, handler),
		status:        status,
		statsInterval: 30 * time.Second,
		ready:         make(chan struct{}),
	}
}

// Run is the server's entry point. It blocks until ctx is done and the
// server has shut down.
func (s *AppServer) Run(ctx context.Context) error {
	logger.Info().
		Str("addr", s.cfg.ListenAddr()).
		Int("max_clients", s.cfg.RoomConf.MaxClients).
		Msg("Starting signaling server...")

	if err := s.server.Start(&s.waitGroup); err != nil {
		s.status.Set(globalstate.StatusStopped)
		return err
	}
	s.status.Set(globalstate.StatusRunning)
	close(s.ready)

	s.waitGroup.Add(1)
	go s.statsLoop(ctx)

	<-ctx.Done()
	s.stop()
	s.Wait()
	return nil
}

// Ready is closed once the listener is bound.
func (s *AppServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Ready.
func (s *AppServer) Addr() net.Addr {
	return s.server.Addr()
}

func (s *AppServer) Wait() {
	s.waitGroup.Wait()
}

// stop gracefully shuts down the server.
func (s *AppServer) stop() {
	s.stopOnce.Do(func() {
		logger.Info().Msg("Stopping server...")
		s.status.Set(globalstate.StatusStopping)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Web server shutdown failed")
		}

		s.status.Set(globalstate.StatusStopped)
		logger.Info().Msg("Server stopped.")
	})
}

// statsLoop 定期输出房间和连接数量
func (s *AppServer) statsLoop(ctx context.Context) {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug().
				Int("rooms", s.registry.Len()).
				Int("clients", s.handler.Hub().Len()).
				Msg("[AppServer] Stats.")
		case <-ctx.Done():
			return
		}
	}
}
