// Package auth verifies the bearer token a RouteComponent's auth_jwt block
// declares (spec §3/§4.G). It has no user/session model of its own: a
// route names a JWT claim field and a collection, and this package's only
// job is pulling that claim out of a validated token for route.RequireAuth
// to check against the collection's records.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("token is missing the declared auth_jwt field")
)

// Verifier validates bearer tokens against a single HMAC secret and
// extracts the named claim a route's auth_jwt block declares.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// ClaimValue parses tokenString, verifies its signature and expiry, and
// returns the string value of the claim named field. This is the value
// route.RequireAuth compares against a record's ref_col field.
func (v *Verifier) ClaimValue(tokenString, field string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	raw, ok := claims[field]
	if !ok {
		return "", ErrMissingClaim
	}
	s, ok := raw.(string)
	if !ok {
		return "", ErrMissingClaim
	}
	return s, nil
}
