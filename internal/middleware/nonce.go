package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcogenualdo/discord-join/internal/cache"
	"github.com/marcogenualdo/discord-join/pkg/security"
)

const (
	NonceField  = "nonce"
	NonceHeader = "X-Relay-Nonce"

	noncePrefix = "relay-nonce:"
)

// NonceMiddleware issues one-time nonces and rejects state-changing requests
// that do not present an unused one.
type NonceMiddleware struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewNonceMiddleware(cache cache.Cache, ttl time.Duration, logger *slog.Logger) *NonceMiddleware {
	return &NonceMiddleware{
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (nm *NonceMiddleware) RequireNonce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
			nonce := r.FormValue(NonceField)
			if nonce == "" {
				nonce = r.Header.Get(NonceHeader)
			}

			if nonce == "" {
				nm.logger.Warn("missing relay nonce", "path", r.URL.Path)
				http.Error(w, "Missing nonce", http.StatusForbidden)
				return
			}

			taken, err := nm.cache.Take(r.Context(), noncePrefix+nonce)
			if err != nil {
				nm.logger.Error("failed to consume relay nonce", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !taken {
				nm.logger.Warn("invalid relay nonce", "path", r.URL.Path)
				http.Error(w, "Invalid or expired nonce", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (nm *NonceMiddleware) GenerateNonce(ctx context.Context) (string, error) {
	nonce, err := security.GenerateToken()
	if err != nil {
		return "", err
	}

	if err := nm.cache.Set(ctx, noncePrefix+nonce, []byte("1"), nm.ttl); err != nil {
		return "", err
	}

	return nonce, nil
}
