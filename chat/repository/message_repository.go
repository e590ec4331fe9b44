package repository

import (
	"context"

	"campus-taskhub/backend/chat/models"

	"gorm.io/gorm"
)

// MessageRepository is the persistence collaborator for the chat service.
// The log is append-only; updates are restricted to the is_read and
// is_deleted flags.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// ListByParticipant returns every undeleted message the user sent or
	// received, ordered by (created_at, seq) ascending.
	ListByParticipant(ctx context.Context, userID string) ([]models.Message, error)
	// ListByRoom returns one page of a room's undeleted messages in
	// (created_at, seq) ascending order.
	ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	// MarkRead flips is_read on every unread message addressed to the
	// receiver in the room. Monotonic: true is never reset.
	MarkRead(ctx context.Context, roomID, receiverID string) error
	// SoftDelete marks one message deleted without removing the row
	SoftDelete(ctx context.Context, id string) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *GormMessageRepository) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at ASC, seq ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Order("created_at ASC, seq ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Count(&count).Error
	return count, err
}

func (r *GormMessageRepository) MarkRead(ctx context.Context, roomID, receiverID string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("room_id = ? AND receiver_id = ? AND is_read = ?", roomID, receiverID, false).
		Update("is_read", true).Error
}

func (r *GormMessageRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}
