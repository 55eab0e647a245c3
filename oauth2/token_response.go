package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749,
// plus the absolute "expires_at" field used when a token set is persisted by the caller.
type TokenResponse struct {
	// AccessToken is the JWT presented to the provider's API on every call.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Lifespan: Short-lived (typically 30 minutes)
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity information.
	// Only present: When the "openid" scope was requested
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "Bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Only present on documents freshly returned by the token endpoint;
	// converted to ExpiresAt when the response is adopted into a token set.
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the absolute expiry as a Unix timestamp.
	// Present on serialized token sets so that persistence survives clock drift
	// between the moment of issue and the moment of reload.
	ExpiresAt *int64 `json:"expires_at,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Usage: Send to the token endpoint with grant_type=refresh_token
	// Security: Rotates on each use; absent after the provider revokes it
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Usage: Space-separated list of scopes
	// Note: May be less than requested if some scopes were denied
	Scope string `json:"scope,omitempty"`
}
