// Package login drives the host's join page: it resolves the player through the
// identity provider, picks the matching account and submits the composite
// credential through the host's own form.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/composite"
	"github.com/marcogenualdo/discord-join/internal/page"
	"github.com/marcogenualdo/discord-join/internal/session"
)

const (
	StatusNoCachedSession = "No existing Discord auth data found! Try clicking the Discord login button! :)"
	StatusFetchFailed     = "Failed to authenticate user!"
	StatusAuthenticated   = "You have been authenticated via Discord! :) Please provide your access key:"

	statusRejected = "Woah! Sorry %s but you dont have access to this server!"
)

type Orchestrator struct {
	surface  page.LoginSurface
	resolver *auth.Resolver
	store    *session.Store
	kinds    []composite.Kind
	logger   *slog.Logger
}

func NewOrchestrator(surface page.LoginSurface, resolver *auth.Resolver, store *session.Store, kinds []composite.Kind, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		surface:  surface,
		resolver: resolver,
		store:    store,
		kinds:    kinds,
		logger:   logger,
	}
}

// Run performs one pass over a ready login page. location is the URL the
// provider redirected to, if any. It reports whether the host form was
// submitted; only errors from the page surface are returned.
func (o *Orchestrator) Run(ctx context.Context, location string) (bool, error) {
	allowlist, err := o.surface.Accounts(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read accounts: %w", err)
	}

	cached, cachedOK := o.resolveCached(ctx, allowlist)
	fresh, freshOK := o.resolveFresh(ctx, location, allowlist)

	switch {
	case freshOK:
		return o.submitCredential(ctx, fresh)
	case cachedOK:
		return o.submitCredential(ctx, cached)
	}

	o.surface.OfferAuthorization(o.resolver.Authorize())
	return false, nil
}

func (o *Orchestrator) resolveCached(ctx context.Context, allowlist []auth.AllowlistEntry) (auth.Resolution, bool) {
	token, ok := o.store.Load(ctx)
	if !ok {
		o.logger.Debug("no cached session", "error", auth.ErrNoCachedSession)
		o.surface.ShowStatus(StatusNoCachedSession)
		return auth.Resolution{}, false
	}

	res, err := o.resolver.Resolve(ctx, token, allowlist)
	if err != nil {
		o.logger.Info("cached session not usable", "error", err)
		o.surface.ShowStatus(StatusNoCachedSession)
		return auth.Resolution{}, false
	}
	return res, true
}

func (o *Orchestrator) resolveFresh(ctx context.Context, location string, allowlist []auth.AllowlistEntry) (auth.Resolution, bool) {
	token, ok := auth.TokenFromLocation(location)
	if !ok {
		o.logger.Debug("no token in redirect location", "error", auth.ErrMissingRedirectToken)
		return auth.Resolution{}, false
	}

	res, err := o.resolver.Resolve(ctx, token, allowlist)
	if err != nil {
		var noMatch *auth.NoMatchError
		if errors.As(err, &noMatch) {
			o.surface.ShowStatus(fmt.Sprintf(statusRejected, noMatch.DisplayName))
		} else {
			o.surface.ShowStatus(StatusFetchFailed)
		}
		return auth.Resolution{}, false
	}

	o.store.Save(ctx, token)
	return res, true
}

func (o *Orchestrator) submitCredential(ctx context.Context, res auth.Resolution) (bool, error) {
	if err := o.surface.SelectAccount(res.AccountHandle); err != nil {
		return false, fmt.Errorf("failed to select account: %w", err)
	}
	o.surface.ShowStatus(StatusAuthenticated)

	accessKey, err := o.surface.AccessKey(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read access key: %w", err)
	}

	credential := composite.Compose(o.kinds, composite.Values{
		composite.KindIdentityID:    res.Identity.ID,
		composite.KindIdentityEmail: res.Identity.Email,
	}, accessKey)

	if err := o.surface.Submit(ctx, credential); err != nil {
		return false, fmt.Errorf("failed to submit login form: %w", err)
	}

	o.logger.Info("login form submitted", "account", res.AccountHandle)
	return true, nil
}
