package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserGormRepository struct {
	db *gorm.DB
}

func NewUserGormRepository(db *gorm.DB) *UserGormRepository {
	return &UserGormRepository{db: db}
}

func (r *UserGormRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := nowUTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	model := toUserModel(user)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (r *UserGormRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(&m), nil
}

func (r *UserGormRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(&m), nil
}

func (r *UserGormRepository) Update(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = nowUTC()

	result := r.db.WithContext(ctx).Model(&userModel{ID: user.ID}).Updates(map[string]any{
		"name":          user.Name,
		"email":         user.Email,
		"phone":         user.Phone,
		"role":          string(user.Role),
		"is_active":     user.IsActive,
		"password_hash": user.PasswordHash,
		"updated_at":    user.UpdatedAt,
	})
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return domain.ErrDuplicateUser
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserGormRepository) List(ctx context.Context) ([]domain.UserSummary, error) {
	var models []userModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]domain.UserSummary, 0, len(models))
	for i := range models {
		summary := domain.UserSummary{User: *fromUserModel(&models[i])}

		var queues []queueModel
		err := r.db.WithContext(ctx).
			Joins("JOIN queue_users ON queue_users.queue_id = queues.id").
			Where("queue_users.user_id = ?", models[i].ID).
			Order("queues.name ASC").
			Find(&queues).Error
		if err != nil {
			return nil, err
		}
		summary.Queues = make([]domain.Queue, 0, len(queues))
		for j := range queues {
			summary.Queues = append(summary.Queues, *fromQueueModel(&queues[j]))
		}

		if err := r.db.WithContext(ctx).Model(&conversationModel{}).
			Where("user_id = ? AND status = ?", models[i].ID, string(domain.StatusAttending)).
			Count(&summary.Attending).Error; err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (r *UserGormRepository) Stats(ctx context.Context, id string) (domain.UserStats, error) {
	var stats domain.UserStats
	if _, err := r.GetByID(ctx, id); err != nil {
		return stats, err
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&conversationModel{}).
		Where("user_id = ? AND status = ?", id, string(domain.StatusAttending)).
		Count(&stats.Attending).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&conversationModel{}).
		Where("user_id = ? AND status = ?", id, string(domain.StatusResolved)).
		Count(&stats.Resolved).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&messageModel{}).
		Where("user_id = ?", id).
		Count(&stats.TotalMessages).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
