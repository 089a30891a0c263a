package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/makinje16/AirSignals/internal/shared/logger"
	"github.com/makinje16/AirSignals/internal/shared/types"
)

// --- DIAGNOSTIC HELPER: A listener that logs accepted connections ---
type loggingListener struct {
	net.Listener
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		logger.Debug().Msgf(" [WebServer DIAGNOSTIC] Connection accepted from: %s ", conn.RemoteAddr())
	}
	return conn, err
}

// newCORS 允许任意来源的 GET 请求，浏览器端的 signaling 客户端需要它。
func newCORS() *cors.Cors {
	corsLog := logger.WithComponent("cors")
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet},
		AllowedHeaders:   []string{"Origin"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
		Logger:           &corsLog, // zerolog 的 Printf 以 debug 级别输出
	})
}

// NewMux builds the routing table for the signaling server.
func NewMux(handler *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/{chatID}/{hostID}", handler.ServeWs)
	mux.HandleFunc("GET /getConnectedClients/{chatID}", handler.HandleConnectedClients)
	mux.HandleFunc("GET /api/status", handler.HandleStatus)

	return newCORS().Handler(mux)
}

// Server owns the HTTP listener of the signaling service.
type Server struct {
	cfg        *types.Config
	handler    *Handler
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(cfg *types.Config, handler *Handler) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		httpServer: &http.Server{
			Handler:           NewMux(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(wg *sync.WaitGroup) error {
	addr := s.cfg.ListenAddr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	logger.Info().Msgf("SUCCESS: signaling server is listening on ws://%s", listener.Addr())

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Wrap the original listener with our logging listener
		loggingL := loggingListener{Listener: listener}
		if err := s.httpServer.Serve(loggingL); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Web server error")
		}
		logger.Info().Msg("Web server stopped.")
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown closes every websocket peer and then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.handler.Hub().CloseAll(s.handler.writeWait())
	return s.httpServer.Shutdown(ctx)
}
