package repository

import (
	"context"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// --- Persistence Models ---

type contactModel struct {
	ID        string                      `gorm:"primaryKey"`
	Phone     string                      `gorm:"uniqueIndex:idx_contacts_phone;not null"`
	Name      string                      `gorm:"index:idx_contacts_name;not null"`
	Email     string                      `gorm:"index:idx_contacts_email"`
	Notes     string                      `gorm:"type:text"`
	Tags      datatypes.JSONSlice[string]
	IsBlocked bool                        `gorm:"not null"`
	CreatedAt time.Time                   `gorm:"index;not null"`
	UpdatedAt time.Time                   `gorm:"not null"`
}

func (contactModel) TableName() string {
	return "contacts"
}

type queueModel struct {
	ID               string    `gorm:"primaryKey"`
	Name             string    `gorm:"uniqueIndex:idx_queues_name;not null"`
	Description      string    `gorm:"type:text"`
	Color            string    `gorm:"size:16"`
	Priority         int       `gorm:"not null"`
	IsActive         bool      `gorm:"index;not null"`
	AutoAssign       bool      `gorm:"not null"`
	MaxConversations int       `gorm:"not null"`
	CreatedAt        time.Time `gorm:"index;not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (queueModel) TableName() string {
	return "queues"
}

type userModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex:idx_users_email;not null"`
	Phone        string    `gorm:"size:32"`
	Role         string    `gorm:"size:16;not null"`
	IsActive     bool      `gorm:"not null"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string {
	return "users"
}

type queueUserModel struct {
	QueueID   string    `gorm:"primaryKey"`
	UserID    string    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`

	Queue *queueModel `gorm:"foreignKey:QueueID;constraint:OnDelete:CASCADE"`
	User  *userModel  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (queueUserModel) TableName() string {
	return "queue_users"
}

type conversationModel struct {
	ID            string     `gorm:"primaryKey"`
	ContactID     string     `gorm:"index:idx_conversations_contact_status,priority:1;not null"`
	QueueID       *string    `gorm:"index"`
	UserID        *string    `gorm:"index"`
	Status        string     `gorm:"index:idx_conversations_contact_status,priority:2;size:16;not null"`
	Priority      string     `gorm:"size:16;not null"`
	LastMessageAt time.Time  `gorm:"index;not null"`
	ClosedAt      *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`

	Contact *contactModel `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE"`
	Queue   *queueModel   `gorm:"foreignKey:QueueID;constraint:OnDelete:SET NULL"`
	User    *userModel    `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

func (conversationModel) TableName() string {
	return "conversations"
}

type messageModel struct {
	ID             string  `gorm:"primaryKey"`
	ConversationID string  `gorm:"index:idx_messages_conversation_created,priority:1;not null"`
	UserID         *string `gorm:"index"`
	Content        string  `gorm:"type:text;not null"`
	MessageType    string  `gorm:"size:16;not null"`
	Direction      string  `gorm:"size:16;not null"`
	Status         string  `gorm:"size:16;not null"`
	IsRead         bool    `gorm:"not null"`
	ExternalID     string  `gorm:"index"`
	MediaRef       string
	FailureReason  string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2;not null"`
	SentAt         *time.Time
	DeliveredAt    *time.Time
	ReadAt         *time.Time

	Conversation *conversationModel `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	User         *userModel         `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

func (messageModel) TableName() string {
	return "messages"
}

type connectionModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	PhoneNumberID string `gorm:"not null"`
	AccessToken   string `gorm:"type:text;not null"` // AES-GCM sealed
	VerifyToken   string `gorm:"not null"`
	WebhookURL    string
	IsActive      bool `gorm:"index;not null"`
	LastSyncAt    *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (connectionModel) TableName() string {
	return "whatsapp_connections"
}

// AutoMigrate creates or updates every CRM table.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&contactModel{},
		&queueModel{},
		&userModel{},
		&queueUserModel{},
		&conversationModel{},
		&messageModel{},
		&connectionModel{},
	)
}

// --- Helpers ---

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// --- Mappers ---

func toContactModel(c *domain.Contact) contactModel {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return contactModel{
		ID:        c.ID,
		Phone:     c.Phone,
		Name:      c.Name,
		Email:     c.Email,
		Notes:     c.Notes,
		Tags:      datatypes.JSONSlice[string](tags),
		IsBlocked: c.IsBlocked,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func fromContactModel(m *contactModel) *domain.Contact {
	tags := []string(m.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &domain.Contact{
		ID:        m.ID,
		Phone:     m.Phone,
		Name:      m.Name,
		Email:     m.Email,
		Notes:     m.Notes,
		Tags:      tags,
		IsBlocked: m.IsBlocked,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toQueueModel(q *domain.Queue) queueModel {
	return queueModel{
		ID:               q.ID,
		Name:             q.Name,
		Description:      q.Description,
		Color:            q.Color,
		Priority:         q.Priority,
		IsActive:         q.IsActive,
		AutoAssign:       q.AutoAssign,
		MaxConversations: q.MaxConversations,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

func fromQueueModel(m *queueModel) *domain.Queue {
	return &domain.Queue{
		ID:               m.ID,
		Name:             m.Name,
		Description:      m.Description,
		Color:            m.Color,
		Priority:         m.Priority,
		IsActive:         m.IsActive,
		AutoAssign:       m.AutoAssign,
		MaxConversations: m.MaxConversations,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Role:         domain.UserRole(m.Role),
		IsActive:     m.IsActive,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toConversationModel(c *domain.Conversation) conversationModel {
	return conversationModel{
		ID:            c.ID,
		ContactID:     c.ContactID,
		QueueID:       c.QueueID,
		UserID:        c.UserID,
		Status:        string(c.Status),
		Priority:      string(c.Priority),
		LastMessageAt: c.LastMessageAt,
		ClosedAt:      c.ClosedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromConversationModel(m *conversationModel) *domain.Conversation {
	c := &domain.Conversation{
		ID:            m.ID,
		ContactID:     m.ContactID,
		QueueID:       m.QueueID,
		UserID:        m.UserID,
		Status:        domain.ConversationStatus(m.Status),
		Priority:      domain.Priority(m.Priority),
		LastMessageAt: m.LastMessageAt,
		ClosedAt:      m.ClosedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Contact != nil {
		c.Contact = fromContactModel(m.Contact)
	}
	if m.Queue != nil {
		c.Queue = fromQueueModel(m.Queue)
	}
	if m.User != nil {
		c.User = fromUserModel(m.User)
	}
	return c
}

func toMessageModel(msg *domain.Message) messageModel {
	return messageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Content:        msg.Content,
		MessageType:    string(msg.MessageType),
		Direction:      string(msg.Direction),
		Status:         string(msg.Status),
		IsRead:         msg.IsRead,
		ExternalID:     msg.ExternalID,
		MediaRef:       msg.MediaRef,
		FailureReason:  msg.FailureReason,
		CreatedAt:      msg.CreatedAt,
		SentAt:         msg.SentAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
}

func fromMessageModel(m *messageModel) *domain.Message {
	msg := &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Content:        m.Content,
		MessageType:    domain.MessageType(m.MessageType),
		Direction:      domain.Direction(m.Direction),
		Status:         domain.MessageStatus(m.Status),
		IsRead:         m.IsRead,
		ExternalID:     m.ExternalID,
		MediaRef:       m.MediaRef,
		FailureReason:  m.FailureReason,
		CreatedAt:      m.CreatedAt,
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
	if m.User != nil {
		msg.User = fromUserModel(m.User)
	}
	return msg
}
