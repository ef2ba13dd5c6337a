package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContactGormRepository struct {
	db *gorm.DB
}

func NewContactGormRepository(db *gorm.DB) *ContactGormRepository {
	return &ContactGormRepository{db: db}
}

func (r *ContactGormRepository) Create(ctx context.Context, contact *domain.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := nowUTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now
	if contact.Tags == nil {
		contact.Tags = []string{}
	}

	model := toContactModel(contact)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateContact
		}
		return err
	}
	return nil
}

func (r *ContactGormRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	var m contactModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return fromContactModel(&m), nil
}

func (r *ContactGormRepository) GetByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	var m contactModel
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return fromContactModel(&m), nil
}

func (r *ContactGormRepository) Update(ctx context.Context, contact *domain.Contact) error {
	contact.UpdatedAt = nowUTC()
	model := toContactModel(contact)

	result := r.db.WithContext(ctx).Model(&contactModel{ID: contact.ID}).Updates(map[string]any{
		"name":       model.Name,
		"email":      model.Email,
		"notes":      model.Notes,
		"tags":       model.Tags,
		"is_blocked": model.IsBlocked,
		"updated_at": model.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

func (r *ContactGormRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	result := r.db.WithContext(ctx).Model(&contactModel{}).Where("id = ?", id).Updates(map[string]any{
		"is_blocked": blocked,
		"updated_at": nowUTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

func (r *ContactGormRepository) List(ctx context.Context, filter domain.ContactFilter) ([]domain.ContactSummary, int64, error) {
	query := r.db.WithContext(ctx).Model(&contactModel{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", like, "%"+s+"%", like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var models []contactModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.ContactSummary, 0, len(models))
	for i := range models {
		summary := domain.ContactSummary{Contact: *fromContactModel(&models[i])}

		if err := r.db.WithContext(ctx).Model(&conversationModel{}).
			Where("contact_id = ?", models[i].ID).
			Count(&summary.ConversationsCount).Error; err != nil {
			return nil, 0, err
		}

		var last conversationModel
		err := r.db.WithContext(ctx).Where("contact_id = ?", models[i].ID).Order("last_message_at DESC").First(&last).Error
		if err == nil {
			summary.LastConversation = fromConversationModel(&last)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, err
		}

		out = append(out, summary)
	}
	return out, total, nil
}
