package relay

import (
	"context"
	"errors"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

var (
	// ErrEmptyContent means the send request carried neither text nor
	// image.
	ErrEmptyContent = errors.New("message text or image is required")
	// ErrSelfSend means sender and receiver are the same user.
	ErrSelfSend = errors.New("cannot send message to yourself")
	// ErrReceiverNotFound means the receiver id does not resolve to an
	// existing user.
	ErrReceiverNotFound = errors.New("receiver user not found")
	// ErrBadImage means the image payload could not be decoded.
	ErrBadImage = errors.New("invalid image payload")
)

// MessageService is the relay surface the HTTP layer talks to.
type MessageService interface {
	// Send validates, persists and best-effort pushes a new message.
	// Persistence is authoritative: a persist failure fails the whole
	// operation, a push failure is invisible to the sender.
	Send(ctx context.Context, senderID, receiverID string, req *domain.SendMessageRequest) (*domain.Message, error)

	// Contacts returns every user except the caller.
	Contacts(ctx context.Context, userID string) ([]domain.UserResponse, error)

	// ChatPartners returns the users the caller has exchanged at least
	// one message with.
	ChatPartners(ctx context.Context, userID string) ([]domain.UserResponse, error)

	// History returns the full ordered conversation between the caller
	// and the other user.
	History(ctx context.Context, userID, otherID string) ([]domain.Message, error)
}
