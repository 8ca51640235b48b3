package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingRedirect
	StateTokenReceived
	StateIdentityFetched
	StateMatched
	StateRejected
	StateFetchFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateTokenReceived:
		return "token_received"
	case StateIdentityFetched:
		return "identity_fetched"
	case StateMatched:
		return "matched"
	case StateRejected:
		return "rejected"
	case StateFetchFailed:
		return "fetch_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows s within an attempt.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateRejected || s == StateFetchFailed
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	State         State
	Identity      *Identity
	AccountHandle string
}

type Resolver struct {
	provider Provider
	logger   *slog.Logger
	state    State
}

func NewResolver(provider Provider, logger *slog.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		logger:   logger,
		state:    StateIdle,
	}
}

func (r *Resolver) Provider() Provider {
	return r.provider
}

// State is the state reached by the last Authorize or Resolve call.
func (r *Resolver) State() State {
	return r.state
}

// Authorize returns the URL the browser must visit to obtain a token.
func (r *Resolver) Authorize() string {
	r.transition(StateAwaitingRedirect)
	return r.provider.AuthorizationURL()
}

// Resolve looks up the owner of token and matches it against allowlist.
// A rejected identity returns *NoMatchError; a failed lookup wraps ErrNetwork.
func (r *Resolver) Resolve(ctx context.Context, token Token, allowlist []AllowlistEntry) (Resolution, error) {
	if !token.Valid() {
		return Resolution{State: r.state}, ErrMissingRedirectToken
	}
	r.transition(StateTokenReceived)

	identity, err := r.provider.FetchIdentity(ctx, token)
	if err != nil {
		r.transition(StateFetchFailed)
		if !errors.Is(err, ErrNetwork) {
			err = fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		r.logger.Error("identity lookup failed",
			"provider", r.provider.ID(),
			"error", err,
		)
		return Resolution{State: StateFetchFailed}, err
	}
	r.transition(StateIdentityFetched)

	handle, ok := MatchIdentity(identity, allowlist)
	if !ok {
		r.transition(StateRejected)
		r.logger.Info("identity not on allowlist",
			"provider", r.provider.ID(),
			"display_name", identity.DisplayName,
		)
		return Resolution{State: StateRejected, Identity: identity}, &NoMatchError{DisplayName: identity.DisplayName}
	}

	r.transition(StateMatched)
	r.logger.Info("identity matched",
		"provider", r.provider.ID(),
		"display_name", identity.DisplayName,
	)

	return Resolution{
		State:         StateMatched,
		Identity:      identity,
		AccountHandle: handle,
	}, nil
}

func (r *Resolver) transition(next State) {
	r.logger.Debug("resolver transition", "from", r.state.String(), "to", next.String())
	r.state = next
}

// MatchIdentity returns the handle of the first entry whose display name equals
// the identity's exactly.
func MatchIdentity(identity *Identity, allowlist []AllowlistEntry) (string, bool) {
	if identity == nil {
		return "", false
	}
	for _, entry := range allowlist {
		if entry.DisplayName == identity.DisplayName {
			return entry.AccountHandle, true
		}
	}
	return "", false
}

// TokenFromFragment parses an implicit-flow redirect fragment, with or without
// the leading '#'. Both access_token and token_type must be present.
func TokenFromFragment(fragment string) (Token, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return Token{}, false
	}

	values := fragmentValues(fragment)
	token := Token{
		AccessToken: values.Get("access_token"),
		TokenType:   values.Get("token_type"),
	}
	if !token.Valid() {
		return Token{}, false
	}
	return token, true
}

// fragmentValues splits a fragment into pairs without rejecting the whole
// input over one bad pair: semicolons are kept as data and values that fail
// to unescape are kept raw.
func fragmentValues(fragment string) url.Values {
	values := url.Values{}
	for _, pair := range strings.Split(fragment, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		values.Add(unescapeLenient(key), unescapeLenient(value))
	}
	return values
}

func unescapeLenient(s string) string {
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		slog.Debug("malformed fragment component kept raw", "error", err)
		return s
	}
	return unescaped
}

// TokenFromLocation extracts the token from the fragment of a full URL. The
// query string is ignored.
func TokenFromLocation(location string) (Token, bool) {
	if location == "" {
		return Token{}, false
	}
	if strings.HasPrefix(location, "#") {
		return TokenFromFragment(location)
	}

	u, err := url.Parse(location)
	if err != nil {
		return Token{}, false
	}
	return TokenFromFragment(u.EscapedFragment())
}
