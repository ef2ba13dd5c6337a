package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = nowUTC()
	}
	if msg.MessageType == "" {
		msg.MessageType = domain.MessageText
	}
	if msg.Status == "" {
		msg.Status = domain.MessagePending
	}

	model := toMessageModel(msg)
	return r.db.WithContext(ctx).Omit("Conversation", "User").Create(&model).Error
}

func (r *MessageGormRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).Preload("User").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(&m), nil
}

// ListByConversation returns messages oldest first.
func (r *MessageGormRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]domain.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&messageModel{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("User").Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var models []messageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.Message, 0, len(models))
	for i := range models {
		out = append(out, *fromMessageModel(&models[i]))
	}
	return out, total, nil
}

func (r *MessageGormRepository) LastByConversation(ctx context.Context, conversationID string) (*domain.Message, error) {
	var m messageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(&m), nil
}

func (r *MessageGormRepository) FindByExternalID(ctx context.Context, externalID string) ([]domain.Message, error) {
	if externalID == "" {
		return nil, nil
	}

	var models []messageModel
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Message, 0, len(models))
	for i := range models {
		out = append(out, *fromMessageModel(&models[i]))
	}
	return out, nil
}

func (r *MessageGormRepository) UpdateStatus(ctx context.Context, msg *domain.Message) error {
	result := r.db.WithContext(ctx).Model(&messageModel{ID: msg.ID}).Updates(map[string]any{
		"status":         string(msg.Status),
		"external_id":    msg.ExternalID,
		"failure_reason": msg.FailureReason,
		"is_read":        msg.IsRead,
		"sent_at":        msg.SentAt,
		"delivered_at":   msg.DeliveredAt,
		"read_at":        msg.ReadAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageGormRepository) MarkInboundRead(ctx context.Context, conversationID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("conversation_id = ? AND direction = ? AND is_read = ?", conversationID, string(domain.Inbound), false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": at,
		})
	return result.RowsAffected, result.Error
}
