package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/config"
	"golang.org/x/oauth2"
)

const (
	providerID     = "discord"
	authorizePath  = "/api/oauth2/authorize"
	identityPath   = "/api/users/@me"
	maxBodyBytes   = 1 << 20
	defaultTimeout = 30 * time.Second
)

// Scopes requested on every authorization.
var Scopes = []string{"identify", "connections", "email", "guilds"}

type Provider struct {
	baseURL      string
	oauth2Config oauth2.Config
	httpClient   *http.Client
}

type user struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email"`
}

func NewProvider(providerCfg config.ProviderConfig, callbackURL string, httpClient *http.Client) (*Provider, error) {
	if providerCfg.ClientID == "" {
		return nil, fmt.Errorf("discord: client id is required")
	}
	if callbackURL == "" {
		return nil, fmt.Errorf("discord: callback url is required")
	}

	baseURL := strings.TrimRight(providerCfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://discord.com"
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Provider{
		baseURL: baseURL,
		oauth2Config: oauth2.Config{
			ClientID:    providerCfg.ClientID,
			RedirectURL: callbackURL,
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL: baseURL + authorizePath,
			},
		},
		httpClient: httpClient,
	}, nil
}

func (p *Provider) ID() string {
	return providerID
}

func (p *Provider) Name() string {
	return "Discord"
}

func (p *Provider) Type() string {
	return "discord"
}

func (p *Provider) AuthorizationURL() string {
	return p.oauth2Config.AuthCodeURL("", oauth2.SetAuthURLParam("response_type", "token"))
}

// FetchIdentity looks up the token's owner. The Authorization header is built
// by x/oauth2, which canonicalizes the token type: "bearer" is sent as "Bearer".
func (p *Provider) FetchIdentity(ctx context.Context, token auth.Token) (*auth.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+identityPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", auth.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &auth.StatusError{Provider: providerID, StatusCode: resp.StatusCode}
	}

	var u user
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: decode identity: %w", auth.ErrNetwork, err)
	}
	if u.ID == "" || u.Username == "" {
		return nil, fmt.Errorf("%w: identity response missing id or username", auth.ErrNetwork)
	}

	return &auth.Identity{
		DisplayName: u.Username + "#" + u.Discriminator,
		ID:          u.ID,
		Email:       u.Email,
	}, nil
}
