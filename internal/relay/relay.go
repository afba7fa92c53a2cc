package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/AdityaGahukar/PingWave/internal/audit"
	"github.com/AdityaGahukar/PingWave/internal/cache"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/registry"
	"github.com/AdityaGahukar/PingWave/internal/repository"
	"github.com/AdityaGahukar/PingWave/pkg/log"
	"github.com/AdityaGahukar/PingWave/pkg/storage"
)

// Config holds relay tuning.
type Config struct {
	HistoryCacheTTL time.Duration
	ImageURLTTL     time.Duration
}

type relayImpl struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	reg      *registry.Registry
	images   storage.Storage
	history  cache.HistoryCache
	cfg      Config
	sf       singleflight.Group
}

// New creates the message relay.
func New(
	users repository.UserRepository,
	messages repository.MessageRepository,
	reg *registry.Registry,
	images storage.Storage,
	history cache.HistoryCache,
	cfg Config,
) MessageService {
	return &relayImpl{
		users:    users,
		messages: messages,
		reg:      reg,
		images:   images,
		history:  history,
		cfg:      cfg,
	}
}

// Send implements the persist-then-push sequence. There is no
// atomicity across the two steps: an offline or failing receiver
// connection never affects the sender's result, and a missed push is
// recovered through History.
func (r *relayImpl) Send(ctx context.Context, senderID, receiverID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	l := log.Ctx(ctx)

	if strings.TrimSpace(req.Text) == "" && req.Image == "" {
		return nil, ErrEmptyContent
	}
	if senderID == receiverID {
		return nil, ErrSelfSend
	}

	exists, err := r.users.Exists(ctx, receiverID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldReceiverID, receiverID).Msg("receiver lookup failed")
		return nil, err
	}
	if !exists {
		return nil, ErrReceiverNotFound
	}

	var imageURL string
	if req.Image != "" {
		imageURL, err = r.storeImage(ctx, req.Image)
		if err != nil {
			l.Warn().Err(err).Msg("image upload failed")
			return nil, err
		}
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       strings.TrimSpace(req.Text),
		Image:      imageURL,
	}

	// Persistence is the authoritative step. Nothing has been pushed
	// yet, so a failure here leaves no trace of the message anywhere.
	if err := r.messages.Create(ctx, msg); err != nil {
		l.Error().Err(err).Msg("failed to persist message")
		return nil, err
	}

	if r.history != nil {
		key := r.history.BuildKey(senderID, receiverID)
		if err := r.history.Delete(ctx, key); err != nil {
			l.Warn().Err(err).Msg("history cache invalidation failed")
		}
	}

	// Best-effort fan-out to the receiver's live connections. A failed
	// push is logged and forgotten; durability already happened above.
	for _, h := range r.reg.HandlesFor(receiverID) {
		if err := h.Push(domain.EventNewMessage, msg); err != nil {
			l.Debug().Err(err).
				Str(log.FieldConnID, h.ID()).
				Str(log.FieldMessageID, msg.ID).
				Msg("message push failed")
		}
	}

	audit.Log(ctx, audit.ActionMessageSent, senderID, "message sent")
	l.Info().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldReceiverID, receiverID).
		Bool("receiver_online", r.reg.IsOnline(receiverID)).
		Msg("message relayed")

	return msg, nil
}

// Contacts returns every user except the caller.
func (r *relayImpl) Contacts(ctx context.Context, userID string) ([]domain.UserResponse, error) {
	users, err := r.users.ListExcept(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toResponses(users), nil
}

// ChatPartners resolves the caller's distinct conversation partners.
func (r *relayImpl) ChatPartners(ctx context.Context, userID string) ([]domain.UserResponse, error) {
	ids, err := r.messages.PartnerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := r.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toResponses(users), nil
}

// History returns the ordered conversation between two users, served
// from cache when possible. Singleflight collapses concurrent misses
// for the same conversation into one repository read.
func (r *relayImpl) History(ctx context.Context, userID, otherID string) ([]domain.Message, error) {
	if r.history == nil {
		return r.messages.Between(ctx, userID, otherID)
	}

	key := r.history.BuildKey(userID, otherID)
	if messages, err := r.history.Get(ctx, key); err == nil {
		return messages, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		messages, err := r.messages.Between(ctx, userID, otherID)
		if err != nil {
			return nil, err
		}
		if err := r.history.Set(ctx, key, messages, r.cfg.HistoryCacheTTL); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("history cache write failed")
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]domain.Message), nil
}

// storeImage decodes a base64 (optionally data-URI) payload, writes it
// to object storage and returns its URL.
func (r *relayImpl) storeImage(ctx context.Context, payload string) (string, error) {
	contentType := "image/jpeg"
	ext := "jpg"

	if strings.HasPrefix(payload, "data:") {
		semi := strings.Index(payload, ";base64,")
		if semi < 0 {
			return "", ErrBadImage
		}
		contentType = payload[len("data:"):semi]
		payload = payload[semi+len(";base64,"):]

		if idx := strings.Index(contentType, "/"); idx >= 0 {
			ext = contentType[idx+1:]
		}
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	key := fmt.Sprintf("messages/%s.%s", uuid.New().String(), ext)
	if err := r.images.Write(ctx, key, bytes.NewReader(raw), int64(len(raw)), contentType); err != nil {
		return "", err
	}

	return r.images.GetURL(ctx, key, r.cfg.ImageURLTTL)
}

func toResponses(users []domain.User) []domain.UserResponse {
	out := make([]domain.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out
}
