package store

import (
	"context"
	"errors"
)

// Keys under which the token pair is persisted.
const (
	KeyAccess  = "access_token"
	KeyRefresh = "refresh_token"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store defines a public type used by psyclient APIs.
//
// Store implementations must be safe for concurrent use. Get must return
// [ErrNotFound] for absent keys rather than an empty value, so callers can
// distinguish "logged out" from a corrupt write.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	RemoveAll(ctx context.Context, keys ...string) error
}
