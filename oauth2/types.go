package oauth2

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// The consent URL requests an authorization code that is exchanged for
	// tokens at the token endpoint.
	// Example: /connect/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, client_secret, redirect_uri
	// Returns: access_token, id_token, refresh_token (if offline_access requested)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenCodeGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id, client_secret
	// Returns: new access_token, id_token, and rotated refresh_token
	RefreshTokenCodeGrant GrantType = "refresh_token"
)

// DefaultScopes are requested when the client was configured without any.
var DefaultScopes = []string{"openid", "email", "profile"}
