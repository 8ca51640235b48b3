package auth

import (
	"context"
)

type Provider interface {
	ID() string
	Name() string
	Type() string

	// AuthorizationURL is the implicit-flow authorize endpoint the browser is
	// sent to. The provider redirects back with the token in the fragment.
	AuthorizationURL() string

	// FetchIdentity asks the provider who owns token. Failures wrap ErrNetwork.
	FetchIdentity(ctx context.Context, token Token) (*Identity, error)
}
