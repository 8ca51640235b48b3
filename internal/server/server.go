package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/cache"
	"github.com/marcogenualdo/discord-join/internal/config"
)

// Server is the loopback relay behind callback_url. It serves the page the
// provider redirects to and hands the posted fragment to the caller.
type Server struct {
	cfg        config.Config
	cache      cache.Cache
	provider   auth.Provider
	logger     *slog.Logger
	fragments  chan string
	listener   net.Listener
	httpServer *http.Server
}

// New creates a relay server. cache holds relay nonces and is closed on
// Shutdown.
func New(cfg config.Config, cache cache.Cache, provider auth.Provider, logger *slog.Logger) (*Server, error) {
	return &Server{
		cfg:       cfg,
		cache:     cache,
		provider:  provider,
		logger:    logger,
		fragments: make(chan string, 1),
	}, nil
}

// Start binds the relay address and serves in the background. Bind errors
// are returned directly.
func (s *Server) Start() error {
	router, err := s.setupRoutes()
	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	addr, err := s.cfg.RelayAddr()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("starting relay server",
			"addr", listener.Addr().String(),
			"callback_url", s.cfg.CallbackURL,
		)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("relay server stopped", "error", err)
		}
	}()

	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Fragments() <-chan string {
	return s.fragments
}

// WaitForFragment blocks until the browser relays a redirect fragment.
func (s *Server) WaitForFragment(ctx context.Context) (string, error) {
	select {
	case fragment := <-s.fragments:
		return fragment, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down relay server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("error during relay shutdown", "error", err)
			return err
		}
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing nonce cache", "error", err)
	}

	s.logger.Info("relay server shutdown complete")
	return nil
}
