package auth

import (
	"errors"
	"fmt"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

var (
	ErrEmailTaken = fmt.Errorf("email already registered: %w", types.ErrConflict)

	// ErrInvalidCredentials is returned for both an unknown email and a wrong
	// password so callers cannot tell which accounts exist.
	ErrInvalidCredentials = fmt.Errorf("incorrect email or password: %w", types.ErrUnauthenticated)
	ErrTooManyAttempts    = errors.New("too many failed login attempts, try again later")

	ErrEmptyPassword   = fmt.Errorf("password must not be empty: %w", types.ErrValidation)
	ErrPasswordTooLong = fmt.Errorf("password must not exceed 72 bytes: %w", types.ErrValidation)
)

// Token verification failures. All of them wrap ErrInvalidToken.
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenMalformed    = fmt.Errorf("malformed token: %w", ErrInvalidToken)
	ErrTokenBadSignature = fmt.Errorf("token signature is invalid: %w", ErrInvalidToken)
	ErrTokenExpired      = fmt.Errorf("token has expired: %w", ErrInvalidToken)

	ErrInvalidTTL   = errors.New("token ttl must be positive")
	ErrEmptySubject = errors.New("token subject must not be empty")
)

// TokenType is the OAuth2 token_type returned on login.
const TokenType = "bearer"
