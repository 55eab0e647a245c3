package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Abacus client SDK
var (
	// Configuration errors
	ErrNoClientID     = errors.New("client id is required")
	ErrNoRedirectURIs = errors.New("at least one redirect URI is required")

	// Token errors
	ErrNoTokenSet     = errors.New("token set is not defined")
	ErrNoAccessToken  = errors.New("access token is undefined")
	ErrNoRefreshToken = errors.New("token set has no refresh token")
	ErrNoIDToken      = errors.New("token set has no id token")
	ErrTokenExpired   = errors.New("token expired")

	// Flow errors
	ErrNotInitialized  = errors.New("client has not been initialized")
	ErrMissingAuthCode = errors.New("callback is missing the authorization code")
	ErrStateMismatch   = errors.New("state parameter mismatch")

	// Tenant errors
	ErrTenantNotFound = errors.New("tenant not found")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
