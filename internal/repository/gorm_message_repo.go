package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create persists a new message, assigning its id and timestamp.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	msg.ID = uuid.New().String()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	model := domain.MessageToModel(msg)
	if result := r.db.WithContext(ctx).Create(model); result.Error != nil {
		return result.Error
	}

	msg.CreatedAt = model.CreatedAt
	return nil
}

// Between returns every message exchanged between the two users,
// oldest first.
func (r *GormMessageRepository) Between(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	var models []domain.MessageModel
	result := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at asc").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *models[i].ToDomain())
	}
	return messages, nil
}

// partnerPair is the projection used by PartnerIDs.
type partnerPair struct {
	SenderID   string
	ReceiverID string
}

// PartnerIDs returns the distinct ids of users the given user has
// exchanged at least one message with. This is a derived read over the
// messages table rather than a materialized index; two-party history
// volumes keep the scan cheap.
func (r *GormMessageRepository) PartnerIDs(ctx context.Context, userID string) ([]string, error) {
	var pairs []partnerPair
	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Select("sender_id", "receiver_id").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Find(&pairs)
	if result.Error != nil {
		return nil, result.Error
	}

	partners := lo.FilterMap(pairs, func(p partnerPair, _ int) (string, bool) {
		if p.SenderID == userID {
			return p.ReceiverID, true
		}
		return p.SenderID, true
	})

	return lo.Uniq(partners), nil
}
