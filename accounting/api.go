// Package accounting is the accounting slice of the provider's API surface.
// Wider coverage is code-generated elsewhere; this hand-written core carries
// the calls the SDK itself depends on and the credential injection the
// generated code shares.
package accounting

import (
	"context"
	"net/http"
	"sync"

	"github.com/abacushq/abacus-go/api"
	"github.com/abacushq/abacus-go/internal/config"
	"github.com/abacushq/abacus-go/tenants"
)

const tenantHeader = "Abacus-Tenant-Id"

// OrganisationsResponse is the document returned by the organisations endpoint.
type OrganisationsResponse struct {
	Organisations []tenants.Organisation `json:"organisations"`
}

// API calls accounting endpoints with an injected access token. The token is
// pushed in by the client facade after every exchange or refresh; the API
// never derives it on its own.
type API struct {
	executor *api.Executor
	baseURL  string

	lock        sync.RWMutex
	accessToken string
}

var _ tenants.OrganisationAPI = (*API)(nil)

// New creates an accounting API bound to an executor. An empty baseURL falls
// back to the SDK default.
func New(executor *api.Executor, baseURL string) *API {
	if baseURL == "" {
		baseURL = config.New().GetAPIBaseURL()
	}
	return &API{executor: executor, baseURL: baseURL}
}

// SetAccessToken injects the bearer token used on subsequent calls.
func (a *API) SetAccessToken(accessToken string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.accessToken = accessToken
}

// AccessToken returns the currently injected bearer token.
func (a *API) AccessToken() string {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.accessToken
}

// Organisations fetches the organisation records visible under tenantID.
func (a *API) Organisations(ctx context.Context, tenantID string) ([]tenants.Organisation, error) {
	resp, err := a.executor.Do(ctx, http.MethodGet, a.baseURL+"/organisations", a.AccessToken(), &api.RequestOptions{
		Headers: map[string]string{tenantHeader: tenantID},
	})
	if err != nil {
		return nil, err
	}
	var doc OrganisationsResponse
	if err := api.DecodeJSON(resp, &doc); err != nil {
		return nil, err
	}
	return doc.Organisations, nil
}
