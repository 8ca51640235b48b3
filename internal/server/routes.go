package server

import (
	"net/http"

	"github.com/marcogenualdo/discord-join/internal/config"
	"github.com/marcogenualdo/discord-join/internal/handlers"
	"github.com/marcogenualdo/discord-join/internal/middleware"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	nonceMiddleware := middleware.NewNonceMiddleware(s.cache, s.cfg.Relay.NonceTTL, s.logger)

	relayHandler, err := handlers.NewRelayHandler(nonceMiddleware, s.fragments, s.logger)
	if err != nil {
		return nil, err
	}

	healthHandler := handlers.NewHealthHandler(s.cfg, s.cache, s.provider, nil, s.logger)

	callbackPattern := "GET " + s.cfg.CallbackPath()
	if s.cfg.CallbackPath() == "/" {
		callbackPattern = "GET /{$}"
	}

	mux.HandleFunc(callbackPattern, relayHandler.ServePage)
	mux.Handle("POST "+config.RelayPath, nonceMiddleware.RequireNonce(http.HandlerFunc(relayHandler.Receive)))
	mux.HandleFunc("GET "+config.HealthPath, healthHandler.ServeHTTP)

	handler := middleware.Recovery(s.logger)(
		middleware.Logging(s.logger)(
			addSecurityHeaders(mux),
		),
	)

	return handler, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
