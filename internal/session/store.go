package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/cache"
)

const (
	AccessTokenKey = "discord-access-token"
	TokenTypeKey   = "discord-access-type"
)

// Store persists the last resolved token pair. It is best effort: storage
// failures are logged, reads fall back to a miss and writes are dropped.
type Store struct {
	cache  cache.Cache
	logger *slog.Logger
}

func NewStore(c cache.Cache, logger *slog.Logger) *Store {
	return &Store{cache: c, logger: logger}
}

// Save overwrites both keys. There is no expiry and no staleness check. If the
// second write fails the access token is removed so a mixed pair never loads.
func (s *Store) Save(ctx context.Context, token auth.Token) {
	if err := s.cache.Set(ctx, AccessTokenKey, []byte(token.AccessToken), 0); err != nil {
		s.logger.Warn("failed to save access token", "error", err)
		return
	}
	if err := s.cache.Set(ctx, TokenTypeKey, []byte(token.TokenType), 0); err != nil {
		s.logger.Warn("failed to save token type", "error", err)
		if err := s.cache.Delete(ctx, AccessTokenKey); err != nil {
			s.logger.Warn("failed to drop partial session", "error", err)
		}
	}
}

func (s *Store) Load(ctx context.Context) (auth.Token, bool) {
	accessToken, ok := s.get(ctx, AccessTokenKey)
	if !ok {
		return auth.Token{}, false
	}
	tokenType, ok := s.get(ctx, TokenTypeKey)
	if !ok {
		return auth.Token{}, false
	}

	token := auth.Token{AccessToken: accessToken, TokenType: tokenType}
	if !token.Valid() {
		return auth.Token{}, false
	}
	return token, true
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("failed to read session storage", "key", key, "error", err)
		}
		return "", false
	}
	return string(value), true
}
