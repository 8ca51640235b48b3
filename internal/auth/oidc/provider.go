package oidc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/config"
	"golang.org/x/oauth2"
)

// Provider resolves identities through a generic OpenID Connect provider's
// userinfo endpoint. Tokens arrive through the implicit flow and no ID token is
// requested, so nothing here verifies signatures.
type Provider struct {
	id           string
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	httpClient   *http.Client
}

type profileClaims struct {
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
}

func NewProvider(ctx context.Context, providerCfg config.ProviderConfig, callbackURL string, httpClient *http.Client) (*Provider, error) {
	if providerCfg.Issuer == "" {
		return nil, fmt.Errorf("oidc: issuer is required")
	}
	if providerCfg.ClientID == "" {
		return nil, fmt.Errorf("oidc: client id is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), providerCfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &Provider{
		id:       "oidc",
		provider: provider,
		oauth2Config: oauth2.Config{
			ClientID:    providerCfg.ClientID,
			RedirectURL: callbackURL,
			Endpoint:    provider.Endpoint(),
			Scopes:      providerCfg.Scopes,
		},
		httpClient: httpClient,
	}, nil
}

func (p *Provider) ID() string {
	return p.id
}

func (p *Provider) Name() string {
	return "OpenID Connect"
}

func (p *Provider) Type() string {
	return "oidc"
}

func (p *Provider) AuthorizationURL() string {
	return p.oauth2Config.AuthCodeURL("", oauth2.SetAuthURLParam("response_type", "token"))
}

func (p *Provider) FetchIdentity(ctx context.Context, token auth.Token) (*auth.Identity, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)

	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %w", auth.ErrNetwork, err)
	}

	var claims profileClaims
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo claims: %w", auth.ErrNetwork, err)
	}

	displayName := claims.PreferredUsername
	if displayName == "" {
		displayName = info.Email
	}
	if info.Subject == "" || displayName == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject or display name", auth.ErrNetwork)
	}

	return &auth.Identity{
		DisplayName: displayName,
		ID:          info.Subject,
		Email:       info.Email,
	}, nil
}
