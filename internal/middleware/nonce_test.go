package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcogenualdo/discord-join/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postForm(nonce string) *http.Request {
	form := url.Values{}
	if nonce != "" {
		form.Set(NonceField, nonce)
	}
	req := httptest.NewRequest(http.MethodPost, "/relay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRequireNonce(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	nm := NewNonceMiddleware(mc, time.Minute, discardLogger())

	calls := 0
	handler := nm.RequireNonce(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))

	nonce, err := nm.GenerateNonce(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm(nonce))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm(nonce))
	assert.Equal(t, http.StatusForbidden, rec.Code, "nonce is single use")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm(""))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 2, calls)
}

func TestRequireNonce_ConcurrentReuse(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	nm := NewNonceMiddleware(mc, time.Minute, discardLogger())

	var passed atomic.Int32
	handler := nm.RequireNonce(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		passed.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))

	nonce, err := nm.GenerateNonce(context.Background())
	require.NoError(t, err)

	const senders = 16
	codes := make([]int, senders)
	var wg sync.WaitGroup
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, postForm(nonce))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), passed.Load())
	forbidden := 0
	for _, code := range codes {
		if code == http.StatusForbidden {
			forbidden++
		}
	}
	assert.Equal(t, senders-1, forbidden)
}

func TestRequireNonce_Header(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	nm := NewNonceMiddleware(mc, time.Minute, discardLogger())
	handler := nm.RequireNonce(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	nonce, err := nm.GenerateNonce(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/relay", nil)
	req.Header.Set(NonceHeader, nonce)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogging_RecordsStatus(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/join?x=1", nil))

	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/join")
	assert.NotContains(t, buf.String(), "x=1")
}
