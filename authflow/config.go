package authflow

import (
	"strings"

	"github.com/abacushq/abacus-go/internal/errors"
	"github.com/abacushq/abacus-go/oauth2"
)

// Config identifies the client application to the provider. It is immutable
// for the lifetime of the engine.
type Config struct {
	ClientID     string
	ClientSecret string

	// RedirectURIs must not be empty; the first entry is the redirect used in
	// the authorization code flow.
	RedirectURIs []string

	// Scopes requested at consent. When empty, oauth2.DefaultScopes apply.
	Scopes []string

	// State is an optional opaque value echoed back on the callback. When set,
	// callbacks carrying a different state are rejected.
	State string
}

// Validate fails fast on configuration that would otherwise produce a
// malformed consent URL at call time.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.ErrNoClientID
	}
	if len(c.RedirectURIs) == 0 {
		return errors.ErrNoRedirectURIs
	}
	return nil
}

// RedirectURI returns the default redirect URI used in the flow.
func (c Config) RedirectURI() string {
	return c.RedirectURIs[0]
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return oauth2.DefaultScopes
	}
	return c.Scopes
}
