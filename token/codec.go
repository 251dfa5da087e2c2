package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a bearer token cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// Pair holds the raw access/refresh credentials as issued by the backend.
// A Pair is immutable once issued; a refresh supersedes it, never mutates it.
type Pair struct {
	Access  string
	Refresh string
}

// Complete reports whether both credentials are present.
func (p Pair) Complete() bool {
	return p.Access != "" && p.Refresh != ""
}

// Claims is the decoded subset of a backend JWT that the client acts on.
type Claims struct {
	ExpiresAt time.Time
	Subject   int64
}

type wireClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Decode extracts expiry and subject claims from raw without verifying the
// signature. It returns [ErrMalformedToken] for anything that is not a
// structurally valid JWT, including tokens missing an exp claim.
func Decode(raw string) (Claims, error) {
	var wc wireClaims
	if _, _, err := parser.ParseUnverified(raw, &wc); err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}
	if wc.ExpiresAt == nil {
		return Claims{}, ErrMalformedToken
	}
	return Claims{
		ExpiresAt: wc.ExpiresAt.Time,
		Subject:   wc.UserID,
	}, nil
}

// Expired reports whether raw is unusable at the given instant. Decode
// failure counts as expired: an undecodable token is never treated as valid.
func Expired(raw string, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	return !claims.ExpiresAt.After(now)
}
