package auth

import (
	"errors"
	"fmt"
)

// The error taxonomy of the auth core. The HTTP boundary switches on these
// with errors.Is; it never inspects error text.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountLocked      = errors.New("auth: account locked")

	// ErrInvalidToken covers malformed, badly signed, expired, revoked and
	// orphaned/deactivated-user tokens. Clients see a single category.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired matches ErrInvalidToken under errors.Is.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	ErrInsufficientPermissions = errors.New("auth: insufficient permissions")
	ErrNotFound                = errors.New("auth: not found")
	ErrConflict                = errors.New("auth: already exists")
	ErrValidation              = errors.New("auth: invalid input")
)
