package authflow

import "fmt"

// DiscoveryError indicates the issuer's metadata could not be fetched or was
// malformed. Fatal at initialization; never retried silently.
type DiscoveryError struct {
	Issuer string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed for issuer %q: %v", e.Issuer, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// TokenExchangeError indicates the provider rejected the authorization code
// exchange, or the callback itself was inconsistent with the original request.
type TokenExchangeError struct {
	Detail string // provider-supplied detail when available
	Err    error
}

func (e *TokenExchangeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("token exchange failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// RefreshError indicates a refresh could not be performed: the refresh token
// is absent, expired, or revoked.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// RevocationError indicates the provider answered a connection revocation with
// a non-2xx response.
type RevocationError struct {
	ConnectionID string
	Err          error
}

func (e *RevocationError) Error() string {
	return fmt.Sprintf("revoking connection %q failed: %v", e.ConnectionID, e.Err)
}

func (e *RevocationError) Unwrap() error {
	return e.Err
}
