package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionGormRepository stores Cloud API credentials. Access tokens are
// sealed with the configured cipher before they are written.
type ConnectionGormRepository struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

func NewConnectionGormRepository(db *gorm.DB, cipher *crypto.Cipher) *ConnectionGormRepository {
	return &ConnectionGormRepository{db: db, cipher: cipher}
}

func (r *ConnectionGormRepository) toModel(c *domain.Connection) (connectionModel, error) {
	token, err := r.cipher.Encrypt(c.AccessToken)
	if err != nil {
		return connectionModel{}, fmt.Errorf("seal access token: %w", err)
	}
	return connectionModel{
		ID:            c.ID,
		Name:          c.Name,
		PhoneNumberID: c.PhoneNumberID,
		AccessToken:   token,
		VerifyToken:   c.VerifyToken,
		WebhookURL:    c.WebhookURL,
		IsActive:      c.IsActive,
		LastSyncAt:    c.LastSyncAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}, nil
}

func (r *ConnectionGormRepository) fromModel(m *connectionModel) (*domain.Connection, error) {
	token, err := r.cipher.Decrypt(m.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token for connection %s: %w", m.ID, err)
	}
	return &domain.Connection{
		ID:            m.ID,
		Name:          m.Name,
		PhoneNumberID: m.PhoneNumberID,
		AccessToken:   token,
		VerifyToken:   m.VerifyToken,
		WebhookURL:    m.WebhookURL,
		IsActive:      m.IsActive,
		LastSyncAt:    m.LastSyncAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func (r *ConnectionGormRepository) Create(ctx context.Context, conn *domain.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	now := nowUTC()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	model, err := r.toModel(conn)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if conn.IsActive {
			if err := deactivateOthers(tx, conn.ID); err != nil {
				return err
			}
		}
		return tx.Create(&model).Error
	})
}

func (r *ConnectionGormRepository) GetByID(ctx context.Context, id string) (*domain.Connection, error) {
	var m connectionModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConnectionNotFound
		}
		return nil, err
	}
	return r.fromModel(&m)
}

func (r *ConnectionGormRepository) Update(ctx context.Context, conn *domain.Connection) error {
	conn.UpdatedAt = nowUTC()
	model, err := r.toModel(conn)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if conn.IsActive {
			if err := deactivateOthers(tx, conn.ID); err != nil {
				return err
			}
		}
		result := tx.Model(&connectionModel{ID: conn.ID}).Updates(map[string]any{
			"name":            model.Name,
			"phone_number_id": model.PhoneNumberID,
			"access_token":    model.AccessToken,
			"verify_token":    model.VerifyToken,
			"webhook_url":     model.WebhookURL,
			"is_active":       model.IsActive,
			"updated_at":      model.UpdatedAt,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrConnectionNotFound
		}
		return nil
	})
}

func (r *ConnectionGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&connectionModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionGormRepository) List(ctx context.Context) ([]domain.Connection, error) {
	var models []connectionModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Connection, 0, len(models))
	for i := range models {
		c, err := r.fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *ConnectionGormRepository) GetActive(ctx context.Context) (*domain.Connection, error) {
	var m connectionModel
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("updated_at DESC").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoActiveConnection
		}
		return nil, err
	}
	return r.fromModel(&m)
}

func (r *ConnectionGormRepository) TouchSync(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&connectionModel{}).Where("id = ?", id).Update("last_sync_at", at).Error
}

func deactivateOthers(tx *gorm.DB, keepID string) error {
	return tx.Model(&connectionModel{}).
		Where("is_active = ? AND id <> ?", true, keepID).
		Updates(map[string]any{"is_active": false, "updated_at": nowUTC()}).Error
}
