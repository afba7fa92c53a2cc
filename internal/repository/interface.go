package repository

import (
	"context"
	"errors"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// UserRepository defines the interface for user persistence. It is the
// identity store the relay consults; credential handling stays in the
// auth service on top of it.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Exists reports whether a user with the given id exists, without
	// loading the full record.
	Exists(ctx context.Context, id string) (bool, error)
	// ListExcept returns all users except the given one.
	ListExcept(ctx context.Context, id string) ([]domain.User, error)
	// GetByIDs returns the users matching the given ids, in no
	// particular order. Missing ids are skipped, not an error.
	GetByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

// MessageRepository defines the interface for message persistence.
// Messages are create-and-read only; there is no update or delete.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// Between returns every message exchanged between the two users,
	// ordered by creation time ascending.
	Between(ctx context.Context, userA, userB string) ([]domain.Message, error)
	// PartnerIDs returns the distinct ids of users the given user has
	// exchanged at least one message with.
	PartnerIDs(ctx context.Context, userID string) ([]string, error)
}
