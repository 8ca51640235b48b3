package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/cache"
	"github.com/marcogenualdo/discord-join/internal/config"
)

type HealthHandler struct {
	cfg        config.Config
	cache      cache.Cache
	provider   auth.Provider
	httpClient *http.Client
	logger     *slog.Logger
	startTime  time.Time
}

func NewHealthHandler(cfg config.Config, cache cache.Cache, provider auth.Provider, httpClient *http.Client, logger *slog.Logger) *HealthHandler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HealthHandler{
		cfg:        cfg,
		cache:      cache,
		provider:   provider,
		httpClient: httpClient,
		logger:     logger,
		startTime:  time.Now(),
	}
}

type HealthResponse struct {
	Status   string     `json:"status"`
	Uptime   string     `json:"uptime"`
	Cache    CacheState `json:"cache"`
	Host     HostState  `json:"host"`
	Provider string     `json:"provider"`
}

type CacheState struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type HostState struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Uptime:   time.Since(h.startTime).String(),
		Provider: h.provider.Name() + " (" + h.provider.Type() + ")",
	}

	response.Cache.Type = cacheType(h.cache)
	if err := h.cache.Set(ctx, "health:check", []byte("ok"), time.Minute); err != nil {
		response.Cache.Status = "error: " + err.Error()
		response.Status = "degraded"
	} else {
		response.Cache.Status = "connected"
		_ = h.cache.Delete(ctx, "health:check")
	}

	response.Host.URL = h.cfg.Host.URL
	response.Host.Status = "reachable"
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.cfg.Host.URL, nil)
	if err == nil {
		var resp *http.Response
		resp, err = h.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}
	if err != nil {
		h.logger.Debug("host unreachable", "error", err)
		response.Host.Status = "unreachable"
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}

func cacheType(c cache.Cache) string {
	switch c.(type) {
	case *cache.MemoryCache:
		return "memory"
	case *cache.SQLiteCache:
		return "sqlite"
	case *cache.RedisCache:
		return "redis"
	default:
		return "unknown"
	}
}
