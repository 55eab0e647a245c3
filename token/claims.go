package token

import (
	"fmt"

	"github.com/abacushq/abacus-go/internal/errors"
	"github.com/abacushq/abacus-go/internal/utils"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ClaimsError indicates that claims could not be read from a token set,
// typically because no id token is present before the first exchange.
type ClaimsError struct {
	Err error
}

func (e *ClaimsError) Error() string {
	return fmt.Sprintf("claims error: %v", e.Err)
}

func (e *ClaimsError) Unwrap() error {
	return e.Err
}

// IDTokenClaims represents the payload of the provider's id_token.
type IDTokenClaims struct {
	Nbf               int64    `json:"nbf"`
	Exp               int64    `json:"exp"`
	Iat               int64    `json:"iat"`
	AuthTime          int64    `json:"auth_time"`
	Iss               string   `json:"iss"`
	Aud               string   `json:"aud"`
	AtHash            string   `json:"at_hash"`
	Sid               string   `json:"sid"`
	Sub               string   `json:"sub"`
	Idp               string   `json:"idp"`
	UserID            string   `json:"abacus_userid"`
	GlobalSessionID   string   `json:"global_session_id"`
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	Amr               []string `json:"amr"`
}

// AccessTokenClaims represents the payload of the provider's access token.
type AccessTokenClaims struct {
	Nbf             int64    `json:"nbf"`
	Exp             int64    `json:"exp"`
	AuthTime        int64    `json:"auth_time"`
	Iss             string   `json:"iss"`
	Aud             string   `json:"aud"`
	ClientID        string   `json:"client_id"`
	Sub             string   `json:"sub"`
	Idp             string   `json:"idp"`
	UserID          string   `json:"abacus_userid"`
	GlobalSessionID string   `json:"global_session_id"`
	Jti             string   `json:"jti"`
	Scope           []string `json:"scope"`
	Amr             []string `json:"amr"`
}

// IDTokenClaims decodes the id token payload without verifying the signature.
// Signature verification happens once, during the code exchange; afterwards the
// claims are treated as a read-only view of an already-trusted token.
func (s Set) IDTokenClaims() (*IDTokenClaims, error) {
	if s.IDToken == "" {
		return nil, &ClaimsError{Err: errors.ErrNoIDToken}
	}
	claims, err := decodeClaims(s.IDToken)
	if err != nil {
		return nil, &ClaimsError{Err: err}
	}
	return &IDTokenClaims{
		Nbf:               utils.ToInt64(claims["nbf"]),
		Exp:               utils.ToInt64(claims["exp"]),
		Iat:               utils.ToInt64(claims["iat"]),
		AuthTime:          utils.ToInt64(claims["auth_time"]),
		Iss:               utils.ToString(claims["iss"]),
		Aud:               utils.ToString(claims["aud"]),
		AtHash:            utils.ToString(claims["at_hash"]),
		Sid:               utils.ToString(claims["sid"]),
		Sub:               utils.ToString(claims["sub"]),
		Idp:               utils.ToString(claims["idp"]),
		UserID:            utils.ToString(claims["abacus_userid"]),
		GlobalSessionID:   utils.ToString(claims["global_session_id"]),
		PreferredUsername: utils.ToString(claims["preferred_username"]),
		Email:             utils.ToString(claims["email"]),
		GivenName:         utils.ToString(claims["given_name"]),
		FamilyName:        utils.ToString(claims["family_name"]),
		Amr:               amrClaim(claims),
	}, nil
}

// AccessTokenClaims decodes the access token payload without verification.
func (s Set) AccessTokenClaims() (*AccessTokenClaims, error) {
	if s.AccessToken == "" {
		return nil, &ClaimsError{Err: errors.ErrNoAccessToken}
	}
	claims, err := decodeClaims(s.AccessToken)
	if err != nil {
		return nil, &ClaimsError{Err: err}
	}
	result := &AccessTokenClaims{
		Nbf:             utils.ToInt64(claims["nbf"]),
		Exp:             utils.ToInt64(claims["exp"]),
		AuthTime:        utils.ToInt64(claims["auth_time"]),
		Iss:             utils.ToString(claims["iss"]),
		Aud:             utils.ToString(claims["aud"]),
		ClientID:        utils.ToString(claims["client_id"]),
		Sub:             utils.ToString(claims["sub"]),
		Idp:             utils.ToString(claims["idp"]),
		UserID:          utils.ToString(claims["abacus_userid"]),
		GlobalSessionID: utils.ToString(claims["global_session_id"]),
		Jti:             utils.ToString(claims["jti"]),
		Amr:             amrClaim(claims),
	}
	if scopes, ok := claims["scope"].([]any); ok {
		result.Scope = utils.ToStringSlice(scopes)
	}
	return result, nil
}

func decodeClaims(rawToken string) (jwtlib.MapClaims, error) {
	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.ErrInternal
	}
	return claims, nil
}

func amrClaim(claims jwtlib.MapClaims) []string {
	if amr, ok := claims["amr"].([]any); ok {
		return utils.ToStringSlice(amr)
	}
	return nil
}
