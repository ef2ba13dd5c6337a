package domain

import (
	"context"
	"time"
)

// ContactRepository define la persistencia de contactos
type ContactRepository interface {
	Create(ctx context.Context, contact *Contact) error
	GetByID(ctx context.Context, id string) (*Contact, error)
	GetByPhone(ctx context.Context, phone string) (*Contact, error)
	Update(ctx context.Context, contact *Contact) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
	List(ctx context.Context, filter ContactFilter) ([]ContactSummary, int64, error)
}

// QueueRepository define la persistencia de colas y sus membresías
type QueueRepository interface {
	Create(ctx context.Context, queue *Queue) error
	GetByID(ctx context.Context, id string) (*Queue, error)
	Update(ctx context.Context, queue *Queue) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]QueueSummary, error)

	// FirstActive retorna la cola activa más antigua o ErrQueueNotFound
	FirstActive(ctx context.Context) (*Queue, error)

	AddUser(ctx context.Context, queueID, userID string) (*QueueUser, error)
	RemoveUser(ctx context.Context, queueID, userID string) error
	// Members retorna los usuarios de la cola en orden de ingreso
	Members(ctx context.Context, queueID string) ([]User, error)
}

// UserRepository define la persistencia de agentes
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	List(ctx context.Context) ([]UserSummary, error)
	Stats(ctx context.Context, id string) (UserStats, error)
}

// ConversationRepository define la persistencia de conversaciones
type ConversationRepository interface {
	Create(ctx context.Context, conversation *Conversation) error
	GetByID(ctx context.Context, id string) (*Conversation, error)
	Update(ctx context.Context, conversation *Conversation) error
	FindOpenByContact(ctx context.Context, contactID string) (*Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	// TouchOpen actualiza lastMessageAt solo si la conversación sigue abierta
	TouchOpen(ctx context.Context, id string, at time.Time) (bool, error)
	List(ctx context.Context, filter ConversationFilter) ([]ConversationSummary, int64, error)
	ListByContact(ctx context.Context, contactID string) ([]Conversation, error)

	CountOpenByQueue(ctx context.Context, queueID string) (int64, error)
	CountAttendingByUser(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context) (ConversationStats, error)

	// ListInactive retorna conversaciones abiertas sin actividad desde before
	ListInactive(ctx context.Context, before time.Time) ([]Conversation, error)
	// CloseIfInactive cierra solo si sigue abierta y sin actividad desde before
	CloseIfInactive(ctx context.Context, id string, before, closedAt time.Time) (bool, error)
	// ListWaitingUnassigned retorna las conversaciones en espera sin agente, más antiguas primero
	ListWaitingUnassigned(ctx context.Context, queueID string, limit int) ([]Conversation, error)
}

// MessageRepository define la persistencia del ledger de mensajes
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]Message, int64, error)
	LastByConversation(ctx context.Context, conversationID string) (*Message, error)
	FindByExternalID(ctx context.Context, externalID string) ([]Message, error)
	UpdateStatus(ctx context.Context, message *Message) error
	// MarkInboundRead marca como leídos los INBOUND no leídos y retorna cuántos cambió
	MarkInboundRead(ctx context.Context, conversationID string, at time.Time) (int64, error)
}

// ConnectionRepository define la persistencia de credenciales de la Cloud API.
// Create y Update desactivan las demás conexiones cuando la guardada queda activa.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *Connection) error
	GetByID(ctx context.Context, id string) (*Connection, error)
	Update(ctx context.Context, conn *Connection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Connection, error)
	GetActive(ctx context.Context) (*Connection, error)
	TouchSync(ctx context.Context, id string, at time.Time) error
}
