package repository

import (
	"context"
	"errors"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QueueGormRepository struct {
	db *gorm.DB
}

func NewQueueGormRepository(db *gorm.DB) *QueueGormRepository {
	return &QueueGormRepository{db: db}
}

func (r *QueueGormRepository) Create(ctx context.Context, queue *domain.Queue) error {
	if queue.ID == "" {
		queue.ID = uuid.New().String()
	}
	now := nowUTC()
	if queue.CreatedAt.IsZero() {
		queue.CreatedAt = now
	}
	queue.UpdatedAt = now
	if queue.MaxConversations <= 0 {
		queue.MaxConversations = domain.DefaultMaxConversations
	}

	model := toQueueModel(queue)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateQueue
		}
		return err
	}
	return nil
}

func (r *QueueGormRepository) GetByID(ctx context.Context, id string) (*domain.Queue, error) {
	var m queueModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQueueNotFound
		}
		return nil, err
	}
	return fromQueueModel(&m), nil
}

func (r *QueueGormRepository) Update(ctx context.Context, queue *domain.Queue) error {
	queue.UpdatedAt = nowUTC()
	model := toQueueModel(queue)

	// explicit Select so zero values (isActive=false, priority=0) are written
	result := r.db.WithContext(ctx).Model(&queueModel{ID: queue.ID}).
		Select("name", "description", "color", "priority", "is_active", "auto_assign", "max_conversations", "updated_at").
		Updates(&model)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return domain.ErrDuplicateQueue
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrQueueNotFound
	}
	return nil
}

func (r *QueueGormRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// explicit cleanup keeps behaviour identical on databases without FK enforcement
		if err := tx.Where("queue_id = ?", id).Delete(&queueUserModel{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&conversationModel{}).Where("queue_id = ?", id).Update("queue_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&queueModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrQueueNotFound
		}
		return nil
	})
}

func (r *QueueGormRepository) List(ctx context.Context) ([]domain.QueueSummary, error) {
	var models []queueModel
	if err := r.db.WithContext(ctx).Order("priority DESC, created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]domain.QueueSummary, 0, len(models))
	for i := range models {
		summary := domain.QueueSummary{Queue: *fromQueueModel(&models[i])}

		members, err := r.Members(ctx, models[i].ID)
		if err != nil {
			return nil, err
		}
		summary.Users = members

		if err := r.db.WithContext(ctx).Model(&conversationModel{}).
			Where("queue_id = ? AND status IN ?", models[i].ID, openStatusStrings()).
			Count(&summary.OpenConversations).Error; err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (r *QueueGormRepository) FirstActive(ctx context.Context) (*domain.Queue, error) {
	var m queueModel
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at ASC, id ASC").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQueueNotFound
		}
		return nil, err
	}
	return fromQueueModel(&m), nil
}

func (r *QueueGormRepository) AddUser(ctx context.Context, queueID, userID string) (*domain.QueueUser, error) {
	if _, err := r.GetByID(ctx, queueID); err != nil {
		return nil, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrUserNotFound
	}

	m := queueUserModel{QueueID: queueID, UserID: userID, CreatedAt: nowUTC()}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return nil, domain.ErrDuplicateMembership
		}
		return nil, err
	}
	return &domain.QueueUser{QueueID: m.QueueID, UserID: m.UserID, CreatedAt: m.CreatedAt}, nil
}

func (r *QueueGormRepository) RemoveUser(ctx context.Context, queueID, userID string) error {
	return r.db.WithContext(ctx).Where("queue_id = ? AND user_id = ?", queueID, userID).Delete(&queueUserModel{}).Error
}

func (r *QueueGormRepository) Members(ctx context.Context, queueID string) ([]domain.User, error) {
	var models []userModel
	err := r.db.WithContext(ctx).
		Joins("JOIN queue_users ON queue_users.user_id = users.id").
		Where("queue_users.queue_id = ?", queueID).
		Order("queue_users.created_at ASC, users.id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.User, 0, len(models))
	for i := range models {
		out = append(out, *fromUserModel(&models[i]))
	}
	return out, nil
}

func openStatusStrings() []string {
	out := make([]string, 0, len(domain.OpenStatuses))
	for _, s := range domain.OpenStatuses {
		out = append(out, string(s))
	}
	return out
}
