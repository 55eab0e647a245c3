package authflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/abacushq/abacus-go/api"
	"github.com/abacushq/abacus-go/api/apifakes"
	"github.com/abacushq/abacus-go/authflow"
	interrors "github.com/abacushq/abacus-go/internal/errors"
	"github.com/abacushq/abacus-go/oauth2"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves an OIDC discovery document and a scriptable token
// endpoint.
type fakeProvider struct {
	Server *httptest.Server

	discoveryHits atomic.Int32
	discoveryFail bool

	tokenStatus   int
	tokenBody     string
	lastTokenForm url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	provider := &fakeProvider{tokenStatus: http.StatusOK, tokenBody: `{}`}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		provider.discoveryHits.Add(1)
		if provider.discoveryFail {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		issuer := provider.Server.URL
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"issuer": "` + issuer + `",
			"authorization_endpoint": "` + issuer + `/connect/authorize",
			"token_endpoint": "` + issuer + `/connect/token",
			"jwks_uri": "` + issuer + `/.well-known/jwks",
			"id_token_signing_alg_values_supported": ["RS256"]
		}`))
	})
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		provider.lastTokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(provider.tokenStatus)
		_, _ = w.Write([]byte(provider.tokenBody))
	})

	provider.Server = httptest.NewServer(mux)
	t.Cleanup(provider.Server.Close)
	return provider
}

func testConfig() authflow.Config {
	return authflow.Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURIs: []string{"https://app.test/callback", "https://app.test/other"},
		State:        "state-xyz",
	}
}

func newEngine(t *testing.T, provider *fakeProvider, cfg authflow.Config) *authflow.Engine {
	t.Helper()
	engine, err := authflow.New(cfg,
		authflow.WithIssuerURL(provider.Server.URL),
		authflow.WithHTTPClient(provider.Server.Client()),
	)
	require.NoError(t, err)
	return engine
}

func TestNew_FailsFastOnInvalidConfig(t *testing.T) {
	t.Run("no redirect URIs", func(t *testing.T) {
		_, err := authflow.New(authflow.Config{ClientID: "client-1"})
		require.ErrorIs(t, err, interrors.ErrNoRedirectURIs)
	})

	t.Run("no client id", func(t *testing.T) {
		_, err := authflow.New(authflow.Config{RedirectURIs: []string{"https://app.test/callback"}})
		require.ErrorIs(t, err, interrors.ErrNoClientID)
	})
}

func TestEngine_Initialize(t *testing.T) {
	provider := newFakeProvider(t)
	engine := newEngine(t, provider, testConfig())

	metadata, err := engine.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, provider.Server.URL, metadata.Issuer)
	require.Equal(t, provider.Server.URL+"/connect/authorize", metadata.AuthorizationEndpoint)
	require.Equal(t, provider.Server.URL+"/connect/token", metadata.TokenEndpoint)
	require.Equal(t, []string{"RS256"}, metadata.SigningAlgorithms)

	// Cached for the engine lifetime: repeat calls do not re-fetch.
	again, err := engine.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, metadata, again)
	require.Equal(t, int32(1), provider.discoveryHits.Load())
}

func TestEngine_Initialize_DiscoveryError(t *testing.T) {
	provider := newFakeProvider(t)
	provider.discoveryFail = true
	engine := newEngine(t, provider, testConfig())

	_, err := engine.Initialize(context.Background())

	var discoveryErr *authflow.DiscoveryError
	require.ErrorAs(t, err, &discoveryErr)
	require.Equal(t, provider.Server.URL, discoveryErr.Issuer)
}

func TestEngine_BuildConsentURL(t *testing.T) {
	t.Run("defaults scope when none configured", func(t *testing.T) {
		provider := newFakeProvider(t)
		engine := newEngine(t, provider, testConfig())

		consentURL, err := engine.BuildConsentURL(context.Background())
		require.NoError(t, err)

		parsed, err := url.Parse(consentURL)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(consentURL, provider.Server.URL+"/connect/authorize"))

		query := parsed.Query()
		require.Equal(t, string(oauth2.CodeResponseType), query.Get("response_type"))
		require.Equal(t, "client-1", query.Get("client_id"))
		require.Equal(t, "https://app.test/callback", query.Get("redirect_uri"))
		require.Equal(t, "openid email profile", query.Get("scope"))
		require.Equal(t, "state-xyz", query.Get("state"))
	})

	t.Run("joins configured scopes in order", func(t *testing.T) {
		provider := newFakeProvider(t)
		cfg := testConfig()
		cfg.Scopes = []string{"openid", "accounting.transactions", "offline_access"}
		engine := newEngine(t, provider, cfg)

		consentURL, err := engine.BuildConsentURL(context.Background())
		require.NoError(t, err)

		parsed, err := url.Parse(consentURL)
		require.NoError(t, err)
		require.Equal(t, "openid accounting.transactions offline_access", parsed.Query().Get("scope"))
	})
}

func TestEngine_ExchangeCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.tokenBody = `{"access_token":"at-1","refresh_token":"rt-1","id_token":"","token_type":"Bearer","expires_in":1800,"scope":"openid email"}`
		engine := newEngine(t, provider, testConfig())

		set, err := engine.ExchangeCode(context.Background(), "https://app.test/callback?code=auth-code&state=state-xyz")
		require.NoError(t, err)
		require.Equal(t, "at-1", set.AccessToken)
		require.Equal(t, "rt-1", set.RefreshToken)
		require.Equal(t, []string{"openid", "email"}, set.Scope)
		require.False(t, set.Expired())

		form := provider.lastTokenForm
		require.Equal(t, string(oauth2.AuthorizationCodeGrant), form.Get("grant_type"))
		require.Equal(t, "auth-code", form.Get("code"))
		require.Equal(t, "https://app.test/callback", form.Get("redirect_uri"))
	})

	t.Run("state mismatch", func(t *testing.T) {
		provider := newFakeProvider(t)
		engine := newEngine(t, provider, testConfig())

		_, err := engine.ExchangeCode(context.Background(), "https://app.test/callback?code=auth-code&state=tampered")

		var exchangeErr *authflow.TokenExchangeError
		require.ErrorAs(t, err, &exchangeErr)
		require.ErrorIs(t, err, interrors.ErrStateMismatch)
	})

	t.Run("missing code", func(t *testing.T) {
		provider := newFakeProvider(t)
		engine := newEngine(t, provider, testConfig())

		_, err := engine.ExchangeCode(context.Background(), "https://app.test/callback?state=state-xyz")
		require.ErrorIs(t, err, interrors.ErrMissingAuthCode)
	})

	t.Run("provider error parameters", func(t *testing.T) {
		provider := newFakeProvider(t)
		engine := newEngine(t, provider, testConfig())

		_, err := engine.ExchangeCode(context.Background(),
			"https://app.test/callback?error=access_denied&error_description=user+cancelled")

		var exchangeErr *authflow.TokenExchangeError
		require.ErrorAs(t, err, &exchangeErr)
		require.Equal(t, "user cancelled", exchangeErr.Detail)
	})

	t.Run("provider rejects the code", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.tokenStatus = http.StatusBadRequest
		provider.tokenBody = `{"error":"invalid_grant"}`
		engine := newEngine(t, provider, testConfig())

		_, err := engine.ExchangeCode(context.Background(), "https://app.test/callback?code=expired&state=state-xyz")

		var exchangeErr *authflow.TokenExchangeError
		require.ErrorAs(t, err, &exchangeErr)
		require.Contains(t, exchangeErr.Detail, "invalid_grant")
	})
}

func TestEngine_Refresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.tokenBody = `{"access_token":"at-2","refresh_token":"rt-2","token_type":"Bearer","expires_in":1800}`
		engine := newEngine(t, provider, testConfig())

		set, err := engine.Refresh(context.Background(), "rt-1")
		require.NoError(t, err)
		require.Equal(t, "at-2", set.AccessToken)
		require.Equal(t, "rt-2", set.RefreshToken)

		form := provider.lastTokenForm
		require.Equal(t, string(oauth2.RefreshTokenCodeGrant), form.Get("grant_type"))
		require.Equal(t, "rt-1", form.Get("refresh_token"))
	})

	t.Run("keeps the old refresh token when the provider omits one", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.tokenBody = `{"access_token":"at-2","token_type":"Bearer","expires_in":1800}`
		engine := newEngine(t, provider, testConfig())

		set, err := engine.Refresh(context.Background(), "rt-1")
		require.NoError(t, err)
		require.Equal(t, "rt-1", set.RefreshToken)
	})

	t.Run("fails explicitly without a refresh token", func(t *testing.T) {
		provider := newFakeProvider(t)
		engine := newEngine(t, provider, testConfig())

		_, err := engine.Refresh(context.Background(), "")

		var refreshErr *authflow.RefreshError
		require.ErrorAs(t, err, &refreshErr)
		require.ErrorIs(t, err, interrors.ErrNoRefreshToken)
		require.Equal(t, int32(0), provider.discoveryHits.Load())
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.tokenStatus = http.StatusBadRequest
		provider.tokenBody = `{"error":"invalid_grant"}`
		engine := newEngine(t, provider, testConfig())

		_, err := engine.Refresh(context.Background(), "rt-revoked")

		var refreshErr *authflow.RefreshError
		require.ErrorAs(t, err, &refreshErr)
	})
}

func TestEngine_Revoke(t *testing.T) {
	const connectionsURL = "https://api.test/connections"

	newRevokeEngine := func(t *testing.T) *authflow.Engine {
		engine, err := authflow.New(testConfig(), authflow.WithConnectionsURL(connectionsURL))
		require.NoError(t, err)
		return engine
	}

	t.Run("success", func(t *testing.T) {
		transport := apifakes.NewFakeTransport()
		transport.Stub(http.MethodDelete, connectionsURL+"/conn-1", http.StatusNoContent, "")
		executor := api.NewExecutor(api.WithHTTPClient(&http.Client{Transport: transport}))

		err := newRevokeEngine(t).Revoke(context.Background(), executor, "conn-1", "tok")
		require.NoError(t, err)
		require.Equal(t, "Bearer tok", transport.LastRequest().Header.Get("Authorization"))
	})

	t.Run("non-2xx becomes a RevocationError", func(t *testing.T) {
		transport := apifakes.NewFakeTransport()
		transport.Stub(http.MethodDelete, connectionsURL+"/conn-1", http.StatusNotFound, "not connected")
		executor := api.NewExecutor(api.WithHTTPClient(&http.Client{Transport: transport}))

		err := newRevokeEngine(t).Revoke(context.Background(), executor, "conn-1", "tok")

		var revocationErr *authflow.RevocationError
		require.ErrorAs(t, err, &revocationErr)
		require.Equal(t, "conn-1", revocationErr.ConnectionID)

		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		require.Equal(t, "not connected", apiErr.Body)
	})

	t.Run("transport failures pass through unchanged", func(t *testing.T) {
		transport := apifakes.NewFakeTransport()
		transport.Err = errors.New("connection refused")
		executor := api.NewExecutor(api.WithHTTPClient(&http.Client{Transport: transport}))

		err := newRevokeEngine(t).Revoke(context.Background(), executor, "conn-1", "tok")

		var transportErr *api.TransportError
		require.ErrorAs(t, err, &transportErr)

		var revocationErr *authflow.RevocationError
		require.False(t, errors.As(err, &revocationErr))
	})
}
