// Package abacus is the client SDK for the Abacus accounting platform. It
// authenticates an application with OAuth2/OpenID Connect, keeps the resulting
// token set current, and routes every API call through a single authenticated
// executor.
package abacus

import (
	"context"
	"net/http"
	"sync"

	"github.com/abacushq/abacus-go/accounting"
	"github.com/abacushq/abacus-go/api"
	"github.com/abacushq/abacus-go/authflow"
	"github.com/abacushq/abacus-go/internal/config"
	interrors "github.com/abacushq/abacus-go/internal/errors"
	"github.com/abacushq/abacus-go/tenants"
	"github.com/abacushq/abacus-go/token"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ClientConfig identifies the client application. See authflow.Config.
type ClientConfig = authflow.Config

// flowEngine is the protocol surface the facade drives. Satisfied by
// *authflow.Engine; narrowed to an interface so tests can substitute it.
type flowEngine interface {
	Initialize(ctx context.Context) (*authflow.ProviderMetadata, error)
	BuildConsentURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, callbackURL string) (token.Set, error)
	Refresh(ctx context.Context, refreshToken string) (token.Set, error)
	Revoke(ctx context.Context, executor *api.Executor, connectionID, accessToken string) error
}

// Client is the facade composing the auth flow, the request executor, the
// accounting API surface, and the tenant directory. It owns the single
// mutable token set; everything else only ever receives the current access
// token as a plain string.
type Client struct {
	config    ClientConfig
	flow      flowEngine
	executor  *api.Executor
	directory *tenants.Directory

	// Accounting is the accounting API surface. Its access token is
	// re-injected by the facade after every exchange, refresh, or explicit
	// token set replacement.
	Accounting *accounting.API

	// lock serializes every mutation of the token set slot with every read of
	// the current access token. Holding it across the whole protocol exchange
	// also stops two concurrent refreshes from spending the same rotating
	// refresh token twice.
	lock     sync.RWMutex
	tokenSet token.Set
}

type clientOptions struct {
	httpClient  *http.Client
	issuerURL   string
	apiBaseURL  string
	retryPolicy *api.RetryPolicy
}

// Option modifies the Client at construction time.
type Option func(*clientOptions)

// WithHTTPClient replaces the HTTP client used for both the protocol flow and
// API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithIssuerURL overrides the identity issuer.
func WithIssuerURL(issuerURL string) Option {
	return func(o *clientOptions) {
		o.issuerURL = issuerURL
	}
}

// WithAPIBaseURL overrides the API base URL.
func WithAPIBaseURL(apiBaseURL string) Option {
	return func(o *clientOptions) {
		o.apiBaseURL = apiBaseURL
	}
}

// WithRetryPolicy sets the executor's transport retry policy.
func WithRetryPolicy(policy api.RetryPolicy) Option {
	return func(o *clientOptions) {
		o.retryPolicy = &policy
	}
}

// NewClient validates the configuration and wires the SDK together. When no
// state was configured a random one is generated, so that every callback is
// checked against a known state; retrieve it with State.
func NewClient(cfg ClientConfig, options ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "[NewClient] invalid configuration")
	}
	if cfg.State == "" {
		cfg.State = uuid.NewString()
	}

	defaults := config.New()
	opts := clientOptions{
		issuerURL:  defaults.GetIssuerURL(),
		apiBaseURL: defaults.GetAPIBaseURL(),
	}
	for _, option := range options {
		option(&opts)
	}

	executorOptions := make([]api.ExecutorOption, 0)
	engineOptions := []authflow.EngineOption{
		authflow.WithIssuerURL(opts.issuerURL),
		authflow.WithConnectionsURL(opts.apiBaseURL + "/connections"),
	}
	if opts.httpClient != nil {
		executorOptions = append(executorOptions, api.WithHTTPClient(opts.httpClient))
		engineOptions = append(engineOptions, authflow.WithHTTPClient(opts.httpClient))
	}
	if opts.retryPolicy != nil {
		executorOptions = append(executorOptions, api.WithRetryPolicy(*opts.retryPolicy))
	}

	flow, err := authflow.New(cfg, engineOptions...)
	if err != nil {
		return nil, err
	}

	executor := api.NewExecutor(executorOptions...)
	accountingAPI := accounting.New(executor, opts.apiBaseURL)
	directory, err := tenants.NewDirectory(opts.apiBaseURL+"/connections", accountingAPI)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:     cfg,
		flow:       flow,
		executor:   executor,
		directory:  directory,
		Accounting: accountingAPI,
	}, nil
}

// Initialize discovers the provider configuration. Called implicitly by the
// flow operations; exposed for callers that want discovery errors up front.
func (c *Client) Initialize(ctx context.Context) (*authflow.ProviderMetadata, error) {
	return c.flow.Initialize(ctx)
}

// BuildConsentURL returns the URL of the provider-hosted consent page.
func (c *Client) BuildConsentURL(ctx context.Context) (string, error) {
	return c.flow.BuildConsentURL(ctx)
}

// HandleCallback exchanges the authorization code carried by the callback URL
// and adopts the resulting token set.
func (c *Client) HandleCallback(ctx context.Context, callbackURL string) (token.Set, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	set, err := c.flow.ExchangeCode(ctx, callbackURL)
	if err != nil {
		return token.Set{}, err
	}
	c.adoptLocked(set)
	return c.snapshotLocked(), nil
}

// RefreshToken refreshes the currently held token set and adopts the result.
func (c *Client) RefreshToken(ctx context.Context) (token.Set, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.tokenSet.IsZero() {
		return token.Set{}, errors.Wrap(interrors.ErrNoTokenSet, "[RefreshToken]")
	}
	set, err := c.flow.Refresh(ctx, c.tokenSet.RefreshToken)
	if err != nil {
		return token.Set{}, err
	}
	c.adoptLocked(set)
	return c.snapshotLocked(), nil
}

// RefreshTokenUsingTokenSet refreshes from a caller-supplied token set, for
// example one reloaded from persistence, and adopts the result. The supplied
// set is not modified.
func (c *Client) RefreshTokenUsingTokenSet(ctx context.Context, set token.Set) (token.Set, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	refreshed, err := c.flow.Refresh(ctx, set.RefreshToken)
	if err != nil {
		return token.Set{}, err
	}
	c.adoptLocked(refreshed)
	return c.snapshotLocked(), nil
}

// Disconnect revokes one connection. The held token set is kept for the
// caller to inspect but must be treated as possibly invalidated by the
// provider; re-authentication is the only reliable way to continue.
func (c *Client) Disconnect(ctx context.Context, connectionID string) (token.Set, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.tokenSet.IsZero() {
		return token.Set{}, errors.Wrap(interrors.ErrNoTokenSet, "[Disconnect]")
	}
	if err := c.flow.Revoke(ctx, c.executor, connectionID, c.tokenSet.AccessToken); err != nil {
		return token.Set{}, err
	}
	log.Debug().Str("connection_id", connectionID).Msg("connection revoked")
	c.adoptLocked(c.tokenSet)
	return c.snapshotLocked(), nil
}

// SetTokenSet replaces the held token set, for example with one reloaded from
// persistence.
func (c *Client) SetTokenSet(set token.Set) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.adoptLocked(set)
}

// ReadTokenSet returns a snapshot of the current token set.
func (c *Client) ReadTokenSet() token.Set {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.snapshotLocked()
}

// ReadIDTokenClaims decodes the claims of the current id token. Fails with a
// token.ClaimsError before the first successful exchange.
func (c *Client) ReadIDTokenClaims() (*token.IDTokenClaims, error) {
	c.lock.RLock()
	set := c.snapshotLocked()
	c.lock.RUnlock()
	return set.IDTokenClaims()
}

// UpdateTenants refreshes the tenant directory using the current access
// token. On failure the previously fetched tenant list is left untouched.
func (c *Client) UpdateTenants(ctx context.Context) ([]tenants.Tenant, error) {
	accessToken, err := c.currentAccessToken()
	if err != nil {
		return nil, errors.Wrap(err, "[UpdateTenants]")
	}
	return c.directory.Refresh(ctx, c.executor, accessToken)
}

// Tenants returns the result of the last successful UpdateTenants.
func (c *Client) Tenants() []tenants.Tenant {
	return c.directory.Tenants()
}

// MakeAPICall performs an arbitrary authenticated call with the current
// access token. This is the hook the generated API surface builds on.
func (c *Client) MakeAPICall(ctx context.Context, method, uri string, opts *api.RequestOptions) (*api.Response, error) {
	accessToken, err := c.currentAccessToken()
	if err != nil {
		return nil, errors.Wrap(err, "[MakeAPICall]")
	}
	return c.executor.Do(ctx, method, uri, accessToken, opts)
}

// QueryAPI performs a body-less authenticated call with the current access
// token.
func (c *Client) QueryAPI(ctx context.Context, method, uri string) (*api.Response, error) {
	return c.MakeAPICall(ctx, method, uri, nil)
}

// Executor exposes the underlying request executor for generated API code.
func (c *Client) Executor() *api.Executor {
	return c.executor
}

// State returns the state parameter the consent URL carries and callbacks are
// validated against.
func (c *Client) State() string {
	return c.config.State
}

func (c *Client) currentAccessToken() (string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.tokenSet.IsZero() {
		return "", interrors.ErrNoTokenSet
	}
	return c.tokenSet.AccessToken, nil
}

// adoptLocked installs a token set and, as the final step of every mutation,
// propagates the new access token into the accounting API surface. Callers
// hold the write lock.
func (c *Client) adoptLocked(set token.Set) {
	c.tokenSet = set
	c.Accounting.SetAccessToken(set.AccessToken)
}

func (c *Client) snapshotLocked() token.Set {
	set := c.tokenSet
	set.Scope = append([]string(nil), c.tokenSet.Scope...)
	return set
}
