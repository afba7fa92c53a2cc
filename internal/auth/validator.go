package auth

import (
	"context"
	"errors"

	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/repository"
	"github.com/AdityaGahukar/PingWave/pkg/jwt"
)

var (
	// ErrNoToken means no token was presented at all.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken covers tampered, malformed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserGone means the token verified but its subject no longer
	// exists in the identity store.
	ErrUserGone = errors.New("token user not found")
)

// Validator resolves a session token to the user it is bound to. It is
// stateless and safe for concurrent use; the HTTP middleware and the
// WebSocket handshake share one instance.
type Validator struct {
	tokens *jwt.Manager
	users  repository.UserRepository
}

// NewValidator creates a Validator over the given token manager and
// identity store.
func NewValidator(tokens *jwt.Manager, users repository.UserRepository) *Validator {
	return &Validator{
		tokens: tokens,
		users:  users,
	}
}

// Validate verifies the token and loads the bound user. A failure here
// always happens before any state change in the caller.
func (v *Validator) Validate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims, err := v.tokens.Validate(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}

	return user, nil
}
