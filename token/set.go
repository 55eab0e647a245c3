package token

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/abacushq/abacus-go/internal/utils"
	"github.com/abacushq/abacus-go/oauth2"
	xoauth2 "golang.org/x/oauth2"
)

// Set bundles the credentials of one authenticated session: the access token,
// the optional refresh and id tokens, and their metadata. A Set is a value;
// it is replaced wholesale on refresh and never mutated field by field.
type Set struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresAt    time.Time
	Scope        []string
}

// FromOAuth2 builds a Set from a token endpoint result. The id_token and scope
// arrive as extra response fields rather than first-class oauth2.Token fields.
func FromOAuth2(t *xoauth2.Token) Set {
	s := Set{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    t.Expiry,
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		s.IDToken = idToken
	}
	if scope, ok := t.Extra("scope").(string); ok {
		s.Scope = strings.Fields(scope)
	}
	return s
}

// IsZero reports whether the set holds no credential at all. The zero Set is
// the sentinel for "not authenticated yet" and for a disconnected client.
func (s Set) IsZero() bool {
	return s.AccessToken == ""
}

// HasRefreshToken reports whether the set can be refreshed. Providers are not
// required to return a refresh token; operations that need one must check.
func (s Set) HasRefreshToken() bool {
	return s.RefreshToken != ""
}

// Expired reports whether the access token's expiry has passed.
// A set without a recorded expiry is treated as still valid.
func (s Set) Expired() bool {
	return !s.ExpiresAt.IsZero() && !time.Now().Before(s.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime of the access token.
func (s Set) ExpiresIn() time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(s.ExpiresAt)
}

// MarshalJSON serializes the set in the token endpoint document shape so that
// callers can persist it wherever they like and hand it back via UnmarshalJSON.
func (s Set) MarshalJSON() ([]byte, error) {
	doc := oauth2.TokenResponse{
		TokenType: s.TokenType,
		Scope:     strings.Join(s.Scope, " "),
	}
	if s.AccessToken != "" {
		doc.AccessToken = utils.Ptr(s.AccessToken)
	}
	if s.RefreshToken != "" {
		doc.RefreshToken = utils.Ptr(s.RefreshToken)
	}
	if s.IDToken != "" {
		doc.IdToken = utils.Ptr(s.IDToken)
	}
	if !s.ExpiresAt.IsZero() {
		doc.ExpiresAt = utils.Ptr(s.ExpiresAt.Unix())
	}
	return json.Marshal(doc)
}

// UnmarshalJSON accepts both persisted documents (expires_at) and raw token
// endpoint responses (expires_in, relative to now).
func (s *Set) UnmarshalJSON(data []byte) error {
	var doc oauth2.TokenResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	set := Set{
		AccessToken:  utils.Value(doc.AccessToken),
		RefreshToken: utils.Value(doc.RefreshToken),
		IDToken:      utils.Value(doc.IdToken),
		TokenType:    doc.TokenType,
	}
	if doc.Scope != "" {
		set.Scope = strings.Fields(doc.Scope)
	}
	switch {
	case doc.ExpiresAt != nil:
		set.ExpiresAt = time.Unix(*doc.ExpiresAt, 0)
	case doc.ExpiresIn > 0:
		set.ExpiresAt = time.Now().Add(time.Duration(doc.ExpiresIn) * time.Second)
	}
	*s = set
	return nil
}
