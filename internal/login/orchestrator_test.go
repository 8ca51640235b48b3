package login

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/cache"
	"github.com/marcogenualdo/discord-join/internal/composite"
	"github.com/marcogenualdo/discord-join/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	identities map[string]*auth.Identity
	err        error
	calls      int
}

func (p *fakeProvider) ID() string               { return "fake" }
func (p *fakeProvider) Name() string             { return "Fake" }
func (p *fakeProvider) Type() string             { return "fake" }
func (p *fakeProvider) AuthorizationURL() string { return "https://idp.example/authorize" }

func (p *fakeProvider) FetchIdentity(_ context.Context, token auth.Token) (*auth.Identity, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	identity, ok := p.identities[token.AccessToken]
	if !ok {
		return nil, &auth.StatusError{Provider: "fake", StatusCode: 401}
	}
	return identity, nil
}

type fakeSurface struct {
	accounts  []auth.AllowlistEntry
	accessKey string
	submitErr error

	statuses  []string
	offered   []string
	selected  string
	submitted []string
}

func (s *fakeSurface) Ready(context.Context) (bool, error) { return true, nil }

func (s *fakeSurface) Accounts(context.Context) ([]auth.AllowlistEntry, error) {
	return s.accounts, nil
}

func (s *fakeSurface) ShowStatus(message string)     { s.statuses = append(s.statuses, message) }
func (s *fakeSurface) OfferAuthorization(url string) { s.offered = append(s.offered, url) }

func (s *fakeSurface) SelectAccount(handle string) error {
	s.selected = handle
	return nil
}

func (s *fakeSurface) AccessKey(context.Context) (string, error) { return s.accessKey, nil }

func (s *fakeSurface) Submit(_ context.Context, password string) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.submitted = append(s.submitted, password)
	return nil
}

type fixture struct {
	surface  *fakeSurface
	provider *fakeProvider
	store    *session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	return &fixture{
		surface: &fakeSurface{
			accounts: []auth.AllowlistEntry{
				{DisplayName: "bob#2222", AccountHandle: "u-bob"},
				{DisplayName: "alice#1111", AccountHandle: "u-alice"},
			},
			accessKey: "secret",
		},
		provider: &fakeProvider{identities: map[string]*auth.Identity{
			"alice-token":   {DisplayName: "alice#1111", ID: "999", Email: "a@b.com"},
			"mallory-token": {DisplayName: "mallory#6666", ID: "666"},
		}},
		store: session.NewStore(mc, discardLogger()),
	}
}

func (f *fixture) orchestrator(kinds ...composite.Kind) *Orchestrator {
	resolver := auth.NewResolver(f.provider, discardLogger())
	return NewOrchestrator(f.surface, resolver, f.store, kinds, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const aliceLocation = "http://127.0.0.1:30080/join#access_token=alice-token&token_type=Bearer"

func TestRun_FreshTokenSubmitsComposite(t *testing.T) {
	f := newFixture(t)

	submitted, err := f.orchestrator(composite.KindIdentityID, composite.KindIdentityEmail).Run(context.Background(), aliceLocation)
	require.NoError(t, err)

	assert.True(t, submitted)
	assert.Equal(t, "u-alice", f.surface.selected)
	assert.Equal(t, []string{"999+a@b.com+secret"}, f.surface.submitted)
	assert.Contains(t, f.surface.statuses, StatusNoCachedSession)
	assert.Contains(t, f.surface.statuses, StatusAuthenticated)
	assert.Empty(t, f.surface.offered)

	token, ok := f.store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, auth.Token{AccessToken: "alice-token", TokenType: "Bearer"}, token)
}

func TestRun_AccessKeyOnly(t *testing.T) {
	f := newFixture(t)

	submitted, err := f.orchestrator().Run(context.Background(), aliceLocation)
	require.NoError(t, err)

	assert.True(t, submitted)
	assert.Equal(t, []string{"secret"}, f.surface.submitted)
}

func TestRun_FragmentOrderFollowsConfiguration(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator(composite.KindIdentityEmail, composite.KindIdentityID).Run(context.Background(), aliceLocation)
	require.NoError(t, err)

	assert.Equal(t, []string{"a@b.com+999+secret"}, f.surface.submitted)
}

func TestRun_CachedSessionShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.store.Save(context.Background(), auth.Token{AccessToken: "alice-token", TokenType: "Bearer"})

	submitted, err := f.orchestrator(composite.KindIdentityID).Run(context.Background(), "http://127.0.0.1:30080/join")
	require.NoError(t, err)

	assert.True(t, submitted)
	assert.Equal(t, []string{"999+secret"}, f.surface.submitted)
	assert.NotContains(t, f.surface.statuses, StatusNoCachedSession)
	assert.Equal(t, 1, f.provider.calls)
}

func TestRun_FreshTokenOverwritesCache(t *testing.T) {
	f := newFixture(t)
	f.provider.identities["alice-old"] = &auth.Identity{DisplayName: "alice#1111", ID: "999"}
	f.store.Save(context.Background(), auth.Token{AccessToken: "alice-old", TokenType: "Bearer"})

	submitted, err := f.orchestrator().Run(context.Background(), aliceLocation)
	require.NoError(t, err)

	assert.True(t, submitted)
	assert.Len(t, f.surface.submitted, 1)

	token, ok := f.store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "alice-token", token.AccessToken)
}

func TestRun_RejectedIdentity(t *testing.T) {
	f := newFixture(t)

	submitted, err := f.orchestrator().Run(context.Background(), "#access_token=mallory-token&token_type=Bearer")
	require.NoError(t, err)

	assert.False(t, submitted)
	assert.Contains(t, f.surface.statuses, "Woah! Sorry mallory#6666 but you dont have access to this server!")
	assert.Equal(t, []string{"https://idp.example/authorize"}, f.surface.offered)
	assert.Empty(t, f.surface.submitted)

	_, ok := f.store.Load(context.Background())
	assert.False(t, ok)
}

func TestRun_FetchFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("connection reset for alice-token")

	submitted, err := f.orchestrator().Run(context.Background(), aliceLocation)
	require.NoError(t, err)

	assert.False(t, submitted)
	assert.Contains(t, f.surface.statuses, StatusFetchFailed)
	for _, status := range f.surface.statuses {
		assert.NotContains(t, status, "alice-token")
	}
}

func TestRun_FailedCachedFetchKeepsCache(t *testing.T) {
	f := newFixture(t)
	f.store.Save(context.Background(), auth.Token{AccessToken: "expired", TokenType: "Bearer"})

	submitted, err := f.orchestrator().Run(context.Background(), "")
	require.NoError(t, err)

	assert.False(t, submitted)
	assert.Contains(t, f.surface.statuses, StatusNoCachedSession)
	assert.Len(t, f.surface.offered, 1)

	token, ok := f.store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "expired", token.AccessToken)
}

func TestRun_QueryStringTokenIgnored(t *testing.T) {
	f := newFixture(t)

	submitted, err := f.orchestrator().Run(context.Background(), "http://127.0.0.1:30080/join?access_token=alice-token&token_type=Bearer")
	require.NoError(t, err)

	assert.False(t, submitted)
	assert.Zero(t, f.provider.calls)
}

func TestRun_SubmitErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.surface.submitErr = errors.New("host unavailable")

	submitted, err := f.orchestrator().Run(context.Background(), aliceLocation)
	require.Error(t, err)
	assert.False(t, submitted)
	assert.Contains(t, err.Error(), "host unavailable")
}
