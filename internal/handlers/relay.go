package handlers

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/config"
	"github.com/marcogenualdo/discord-join/internal/middleware"
)

//go:embed templates/*
var templatesFS embed.FS

// RelayHandler carries the implicit-flow fragment from the browser to the
// CLI. The provider redirects to the page, and the page posts its own
// fragment back together with a one-time nonce.
type RelayHandler struct {
	nonces    *middleware.NonceMiddleware
	fragments chan<- string
	logger    *slog.Logger
	template  *template.Template
}

func NewRelayHandler(nonces *middleware.NonceMiddleware, fragments chan<- string, logger *slog.Logger) (*RelayHandler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/relay.html")
	if err != nil {
		return nil, err
	}

	return &RelayHandler{
		nonces:    nonces,
		fragments: fragments,
		logger:    logger,
		template:  tmpl,
	}, nil
}

type RelayPageData struct {
	Nonce      string
	NonceField string
	RelayPath  string
}

func (h *RelayHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.nonces.GenerateNonce(r.Context())
	if err != nil {
		h.logger.Error("failed to generate relay nonce", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := RelayPageData{
		Nonce:      nonce,
		NonceField: middleware.NonceField,
		RelayPath:  config.RelayPath,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.template.Execute(w, data); err != nil {
		h.logger.Error("failed to render relay page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Receive accepts a fragment carrying a token. Only the first one is kept.
func (h *RelayHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fragment := r.FormValue("fragment")
	if _, ok := auth.TokenFromFragment(fragment); !ok {
		h.logger.Warn("relayed fragment has no token")
		http.Error(w, "No access token in redirect", http.StatusBadRequest)
		return
	}

	select {
	case h.fragments <- fragment:
		h.logger.Info("redirect fragment received")
		w.WriteHeader(http.StatusNoContent)
	default:
		h.logger.Warn("redirect fragment already received, dropping")
		http.Error(w, "A login was already received", http.StatusConflict)
	}
}
