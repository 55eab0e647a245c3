package authflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/abacushq/abacus-go/api"
	"github.com/abacushq/abacus-go/internal/config"
	interrors "github.com/abacushq/abacus-go/internal/errors"
	"github.com/abacushq/abacus-go/token"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ProviderMetadata is the issuer configuration discovered once per engine.
type ProviderMetadata struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	SigningAlgorithms     []string
}

// Engine drives the OAuth2/OIDC protocol: discovery, consent URL, code
// exchange, refresh, and revocation. It is deliberately stateless with respect
// to token sets - every operation returns a new one and the facade owns the
// single mutable slot.
type Engine struct {
	config         Config
	issuerURL      string
	connectionsURL string
	httpClient     *http.Client
	clockTolerance time.Duration

	group    singleflight.Group
	lock     sync.RWMutex
	provider *oidc.Provider
	metadata *ProviderMetadata
}

// EngineOption modifies an Engine at construction time.
type EngineOption func(*Engine)

// WithIssuerURL overrides the default identity issuer.
func WithIssuerURL(issuerURL string) EngineOption {
	return func(e *Engine) {
		e.issuerURL = issuerURL
	}
}

// WithConnectionsURL overrides the connection-management endpoint.
func WithConnectionsURL(connectionsURL string) EngineOption {
	return func(e *Engine) {
		e.connectionsURL = connectionsURL
	}
}

// WithHTTPClient replaces the HTTP client used for discovery and token
// endpoint calls.
func WithHTTPClient(client *http.Client) EngineOption {
	return func(e *Engine) {
		e.httpClient = client
	}
}

// WithClockTolerance adjusts the leeway applied to id token time claims.
func WithClockTolerance(tolerance time.Duration) EngineOption {
	return func(e *Engine) {
		e.clockTolerance = tolerance
	}
}

// New creates an Engine for the given client configuration. Configuration
// errors surface here rather than on first use.
func New(cfg Config, options ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, interrors.Wrapf(err, "[New] invalid client configuration")
	}
	defaults := config.New()
	e := &Engine{
		config:         cfg,
		issuerURL:      defaults.GetIssuerURL(),
		connectionsURL: defaults.GetConnectionsURL(),
		httpClient:     &http.Client{Timeout: defaults.GetHTTPTimeout()},
		clockTolerance: defaults.GetClockTolerance(),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Initialize discovers the issuer configuration. The result is cached for the
// lifetime of the engine and concurrent calls share a single fetch. Safe to
// call repeatedly.
func (e *Engine) Initialize(ctx context.Context) (*ProviderMetadata, error) {
	e.lock.RLock()
	metadata := e.metadata
	e.lock.RUnlock()
	if metadata != nil {
		return metadata, nil
	}

	result, err, _ := e.group.Do("discovery", func() (any, error) {
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, e.httpClient), e.issuerURL)
		if err != nil {
			return nil, &DiscoveryError{Issuer: e.issuerURL, Err: err}
		}

		var claims struct {
			SigningAlgorithms []string `json:"id_token_signing_alg_values_supported"`
		}
		if err := provider.Claims(&claims); err != nil {
			return nil, &DiscoveryError{Issuer: e.issuerURL, Err: err}
		}

		endpoint := provider.Endpoint()
		discovered := &ProviderMetadata{
			Issuer:                e.issuerURL,
			AuthorizationEndpoint: endpoint.AuthURL,
			TokenEndpoint:         endpoint.TokenURL,
			SigningAlgorithms:     claims.SigningAlgorithms,
		}

		e.lock.Lock()
		e.provider = provider
		e.metadata = discovered
		e.lock.Unlock()

		log.Debug().Str("issuer", e.issuerURL).Msg("provider metadata discovered")
		return discovered, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ProviderMetadata), nil
}

// BuildConsentURL returns the provider-hosted authorization URL for the
// configured client: first redirect URI, space-joined scopes (defaulted when
// none are configured), and the configured state when present.
func (e *Engine) BuildConsentURL(ctx context.Context) (string, error) {
	if _, err := e.Initialize(ctx); err != nil {
		return "", err
	}
	return e.oauth2Config().AuthCodeURL(e.config.State), nil
}

// ExchangeCode validates the callback URL and exchanges its authorization code
// for a new token set. The callback's state must match the configured state
// before any token request is issued.
func (e *Engine) ExchangeCode(ctx context.Context, callbackURL string) (token.Set, error) {
	if _, err := e.Initialize(ctx); err != nil {
		return token.Set{}, err
	}

	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return token.Set{}, &TokenExchangeError{Err: err}
	}
	params := parsed.Query()

	if errorParam := params.Get("error"); errorParam != "" {
		return token.Set{}, &TokenExchangeError{
			Detail: params.Get("error_description"),
			Err:    fmt.Errorf("provider returned %q", errorParam),
		}
	}
	code := params.Get("code")
	if code == "" {
		return token.Set{}, &TokenExchangeError{Err: interrors.ErrMissingAuthCode}
	}
	if e.config.State != "" && params.Get("state") != e.config.State {
		return token.Set{}, &TokenExchangeError{Err: interrors.ErrStateMismatch}
	}

	oauth2Token, err := e.oauth2Config().Exchange(e.oauth2Context(ctx), code)
	if err != nil {
		return token.Set{}, &TokenExchangeError{Detail: retrieveDetail(err), Err: err}
	}

	if rawIDToken, ok := oauth2Token.Extra("id_token").(string); ok && rawIDToken != "" {
		if err := e.verifyIDToken(ctx, rawIDToken); err != nil {
			return token.Set{}, &TokenExchangeError{Detail: "id token verification", Err: err}
		}
	}

	return token.FromOAuth2(oauth2Token), nil
}

// Refresh exchanges a refresh token for a new token set. The input is never
// mutated; callers adopt the returned set wholesale.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (token.Set, error) {
	if refreshToken == "" {
		return token.Set{}, &RefreshError{Err: interrors.ErrNoRefreshToken}
	}
	if _, err := e.Initialize(ctx); err != nil {
		return token.Set{}, err
	}

	source := e.oauth2Config().TokenSource(e.oauth2Context(ctx), &xoauth2.Token{RefreshToken: refreshToken})
	oauth2Token, err := source.Token()
	if err != nil {
		return token.Set{}, &RefreshError{Err: err}
	}
	return token.FromOAuth2(oauth2Token), nil
}

// Revoke removes one connection through the provider's connection-management
// endpoint. Non-2xx responses become a RevocationError; transport failures
// pass through unchanged so callers can tell the two apart.
func (e *Engine) Revoke(ctx context.Context, executor *api.Executor, connectionID, accessToken string) error {
	uri := e.connectionsURL + "/" + url.PathEscape(connectionID)
	if _, err := executor.Delete(ctx, uri, accessToken); err != nil {
		var apiErr *api.Error
		if interrors.As(err, &apiErr) {
			return &RevocationError{ConnectionID: connectionID, Err: err}
		}
		return err
	}
	return nil
}

func (e *Engine) oauth2Config() *xoauth2.Config {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return &xoauth2.Config{
		ClientID:     e.config.ClientID,
		ClientSecret: e.config.ClientSecret,
		Endpoint:     e.provider.Endpoint(),
		RedirectURL:  e.config.RedirectURI(),
		Scopes:       e.config.scopes(),
	}
}

// oauth2Context routes the oauth2 library's token endpoint calls through the
// engine's HTTP client.
func (e *Engine) oauth2Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, xoauth2.HTTPClient, e.httpClient)
}

func (e *Engine) verifyIDToken(ctx context.Context, rawIDToken string) error {
	e.lock.RLock()
	provider := e.provider
	e.lock.RUnlock()

	verifier := provider.Verifier(&oidc.Config{
		ClientID: e.config.ClientID,
		// The provider's clock may run slightly ahead; shift "now" so that a
		// just-issued token is not rejected as not-yet-valid.
		Now: func() time.Time { return time.Now().Add(e.clockTolerance) },
	})
	_, err := verifier.Verify(oidc.ClientContext(ctx, e.httpClient), rawIDToken)
	return err
}

func retrieveDetail(err error) string {
	var retrieveErr *xoauth2.RetrieveError
	if interrors.As(err, &retrieveErr) {
		return string(retrieveErr.Body)
	}
	return ""
}
