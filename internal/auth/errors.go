package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated covers missing, malformed, forged, revoked and
	// orphaned tokens. The client must log in again.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired is a correctly signed token past its exp claim.
	ErrSessionExpired = errors.New("session expired")

	ErrMissingToken = fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	ErrRevoked      = fmt.Errorf("%w: token revoked", ErrUnauthenticated)
)
