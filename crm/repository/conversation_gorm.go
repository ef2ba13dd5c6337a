package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationGormRepository struct {
	db *gorm.DB
}

func NewConversationGormRepository(db *gorm.DB) *ConversationGormRepository {
	return &ConversationGormRepository{db: db}
}

func (r *ConversationGormRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Contact").Preload("Queue").Preload("User")
}

func (r *ConversationGormRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := nowUTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.LastMessageAt.IsZero() {
		conv.LastMessageAt = now
	}
	conv.UpdatedAt = now
	if conv.Status == "" {
		conv.Status = domain.StatusWaiting
	}
	if conv.Priority == "" {
		conv.Priority = domain.PriorityMedium
	}

	model := toConversationModel(conv)
	return r.db.WithContext(ctx).Omit("Contact", "Queue", "User").Create(&model).Error
}

func (r *ConversationGormRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var m conversationModel
	if err := r.withRelations(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(&m), nil
}

// Update writes the workflow columns. last_message_at is owned by
// TouchLastMessage/TouchOpen and is never written from a loaded copy.
func (r *ConversationGormRepository) Update(ctx context.Context, conv *domain.Conversation) error {
	conv.UpdatedAt = nowUTC()

	result := r.db.WithContext(ctx).Model(&conversationModel{ID: conv.ID}).Updates(map[string]any{
		"queue_id":   conv.QueueID,
		"user_id":    conv.UserID,
		"status":     string(conv.Status),
		"priority":   string(conv.Priority),
		"closed_at":  conv.ClosedAt,
		"updated_at": conv.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationGormRepository) FindOpenByContact(ctx context.Context, contactID string) (*domain.Conversation, error) {
	var m conversationModel
	err := r.withRelations(ctx).
		Where("contact_id = ? AND status IN ?", contactID, openStatusStrings()).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(&m), nil
}

func (r *ConversationGormRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&conversationModel{}).Where("id = ?", id).Updates(map[string]any{
		"last_message_at": at,
		"updated_at":      nowUTC(),
	}).Error
}

func (r *ConversationGormRepository) TouchOpen(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("id = ? AND status IN ?", id, openStatusStrings()).
		Updates(map[string]any{
			"last_message_at": at,
			"updated_at":      nowUTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *ConversationGormRepository) CloseIfInactive(ctx context.Context, id string, before, closedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("id = ? AND status IN ? AND last_message_at < ?", id, openStatusStrings(), before).
		Updates(map[string]any{
			"status":     string(domain.StatusClosed),
			"closed_at":  closedAt,
			"updated_at": nowUTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *ConversationGormRepository) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.ConversationSummary, int64, error) {
	query := r.db.WithContext(ctx).Model(&conversationModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.QueueID != "" {
		query = query.Where("queue_id = ?", filter.QueueID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Contact").Preload("Queue").Preload("User").Order("last_message_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var models []conversationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	if len(models) == 0 {
		return []domain.ConversationSummary{}, total, nil
	}

	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}

	type unreadRow struct {
		ConversationID string
		Count          int64
	}
	var rows []unreadRow
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND direction = ? AND is_read = ?", ids, string(domain.Inbound), false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	unread := make(map[string]int64, len(rows))
	for _, row := range rows {
		unread[row.ConversationID] = row.Count
	}

	out := make([]domain.ConversationSummary, 0, len(models))
	for i := range models {
		summary := domain.ConversationSummary{
			Conversation: *fromConversationModel(&models[i]),
			UnreadCount:  unread[models[i].ID],
		}

		var last messageModel
		err := r.db.WithContext(ctx).
			Where("conversation_id = ?", models[i].ID).
			Order("created_at DESC, id DESC").
			First(&last).Error
		if err == nil {
			summary.LastMessage = fromMessageModel(&last)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, err
		}
		out = append(out, summary)
	}
	return out, total, nil
}

func (r *ConversationGormRepository) ListByContact(ctx context.Context, contactID string) ([]domain.Conversation, error) {
	var models []conversationModel
	err := r.db.WithContext(ctx).Preload("Queue").Preload("User").
		Where("contact_id = ?", contactID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromConversationModels(models), nil
}

func (r *ConversationGormRepository) CountOpenByQueue(ctx context.Context, queueID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("queue_id = ? AND status IN ?", queueID, openStatusStrings()).
		Count(&count).Error
	return count, err
}

func (r *ConversationGormRepository) CountAttendingByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("user_id = ? AND status = ?", userID, string(domain.StatusAttending)).
		Count(&count).Error
	return count, err
}

func (r *ConversationGormRepository) Stats(ctx context.Context) (domain.ConversationStats, error) {
	var stats domain.ConversationStats

	type statusRow struct {
		Status string
		Count  int64
	}
	var rows []statusRow
	err := r.db.WithContext(ctx).Model(&conversationModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}

	for _, row := range rows {
		switch domain.ConversationStatus(row.Status) {
		case domain.StatusWaiting:
			stats.Waiting = row.Count
		case domain.StatusAttending:
			stats.Attending = row.Count
		case domain.StatusResolved:
			stats.Resolved = row.Count
		case domain.StatusClosed:
			stats.Closed = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}

func (r *ConversationGormRepository) ListInactive(ctx context.Context, before time.Time) ([]domain.Conversation, error) {
	var models []conversationModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND last_message_at < ?", openStatusStrings(), before).
		Order("last_message_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromConversationModels(models), nil
}

func (r *ConversationGormRepository) ListWaitingUnassigned(ctx context.Context, queueID string, limit int) ([]domain.Conversation, error) {
	query := r.db.WithContext(ctx).
		Where("queue_id = ? AND status = ? AND user_id IS NULL", queueID, string(domain.StatusWaiting)).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []conversationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromConversationModels(models), nil
}

func fromConversationModels(models []conversationModel) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(models))
	for i := range models {
		out = append(out, *fromConversationModel(&models[i]))
	}
	return out
}
