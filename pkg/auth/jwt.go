// Package auth issues and verifies the bearer tokens guarding the API.
package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/veilpii/veil/config"
)

const JwtAlg = "HS256"

var ErrMissingSecret = errors.New("auth secret not set. ensure VEIL_AUTH_SECRET is set in your environment")

// JWTVerifier returns middleware that extracts and verifies the request's
// bearer token. Pair it with jwtauth.Authenticator to reject bad tokens.
func JWTVerifier(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	tokenAuth := jwtauth.New(JwtAlg, secret, nil)
	return jwtauth.Verifier(tokenAuth), nil
}
