package domain

import (
	"fmt"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
)

// ConversationStatus es el estado del ciclo de atención
type ConversationStatus string

const (
	StatusWaiting   ConversationStatus = "WAITING"
	StatusAttending ConversationStatus = "ATTENDING"
	StatusResolved  ConversationStatus = "RESOLVED"
	StatusClosed    ConversationStatus = "CLOSED"
)

// OpenStatuses son los estados que cuentan para la regla de una conversación abierta por contacto
var OpenStatuses = []ConversationStatus{StatusWaiting, StatusAttending}

func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusAttending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

func (s ConversationStatus) IsOpen() bool {
	return s == StatusWaiting || s == StatusAttending
}

func (s ConversationStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Priority de la conversación
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Conversation une un Contact con un flujo de atención
type Conversation struct {
	ID            string             `json:"id"`
	ContactID     string             `json:"contactId"`
	QueueID       *string            `json:"queueId"`
	UserID        *string            `json:"userId"`
	Status        ConversationStatus `json:"status"`
	Priority      Priority           `json:"priority"`
	LastMessageAt time.Time          `json:"lastMessageAt"`
	ClosedAt      *time.Time         `json:"closedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	Contact *Contact `json:"contact,omitempty"`
	Queue   *Queue   `json:"queue,omitempty"`
	User    *User    `json:"user,omitempty"`
}

// Transition aplica la máquina de estados. RESOLVED y CLOSED son terminales y sellan ClosedAt.
func (c *Conversation) Transition(to ConversationStatus, now time.Time) error {
	if !to.Valid() {
		return pkgError.ValidationError(fmt.Sprintf("invalid status %q", to))
	}
	if c.Status.IsTerminal() {
		return pkgError.ConflictError(fmt.Sprintf("conversation is %s and cannot change to %s", c.Status, to))
	}

	switch to {
	case StatusWaiting:
		if c.Status != StatusWaiting {
			return pkgError.ConflictError(fmt.Sprintf("conversation cannot go back from %s to WAITING", c.Status))
		}
	case StatusAttending:
		if c.UserID == nil || *c.UserID == "" {
			return pkgError.ValidationError("an assigned user is required to attend a conversation")
		}
	case StatusResolved, StatusClosed:
		closedAt := now
		c.ClosedAt = &closedAt
	}

	c.Status = to
	return nil
}

// AssignTo fija el agente y fuerza ATTENDING; se permite reasignar una conversación ya en atención.
func (c *Conversation) AssignTo(userID string, now time.Time) error {
	if c.Status.IsTerminal() {
		return pkgError.ConflictError(fmt.Sprintf("conversation is %s and cannot be assigned", c.Status))
	}
	c.UserID = &userID
	c.Status = StatusAttending
	c.UpdatedAt = now
	return nil
}

// ConversationFilter define los filtros del listado
type ConversationFilter struct {
	Status  ConversationStatus
	QueueID string
	UserID  string
	Limit   int
	Offset  int
}

// ConversationSummary es un elemento del listado con su último mensaje y no leídos
type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int64    `json:"unreadCount"`
}

// ConversationStats son los contadores del panel
type ConversationStats struct {
	Waiting   int64 `json:"waiting"`
	Attending int64 `json:"attending"`
	Resolved  int64 `json:"resolved"`
	Closed    int64 `json:"closed"`
	Total     int64 `json:"total"`
}
