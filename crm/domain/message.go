package domain

import (
	"strings"
	"time"
)

// MessageType es la variante de contenido del mensaje
type MessageType string

const (
	MessageText     MessageType = "TEXT"
	MessageImage    MessageType = "IMAGE"
	MessageDocument MessageType = "DOCUMENT"
	MessageAudio    MessageType = "AUDIO"
	MessageVideo    MessageType = "VIDEO"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageDocument, MessageAudio, MessageVideo:
		return true
	}
	return false
}

// IsMedia indica si el tipo requiere un enlace de media para enviarse
func (t MessageType) IsMedia() bool {
	return t != MessageText
}

// ParseMessageType acepta "image", "IMAGE", etc.
func ParseMessageType(s string) (MessageType, bool) {
	t := MessageType(strings.ToUpper(strings.TrimSpace(s)))
	if s == "" {
		t = MessageText
	}
	return t, t.Valid()
}

// Direction del mensaje respecto al negocio
type Direction string

const (
	Inbound  Direction = "INBOUND"
	Outbound Direction = "OUTBOUND"
)

// MessageStatus es el ciclo de entrega
type MessageStatus string

const (
	MessagePending   MessageStatus = "PENDING"
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
	MessageFailed    MessageStatus = "FAILED"
)

// rank ordena los estados de entrega; FAILED queda fuera del orden.
func (s MessageStatus) rank() int {
	switch s {
	case MessagePending:
		return 0
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return -1
}

// CanAdvanceTo indica si la actualización avanza el estado. Nunca retrocede;
// FAILED solo se acepta sobre PENDING o SENT.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	if next == MessageFailed {
		return s == MessagePending || s == MessageSent
	}
	if s == MessageFailed {
		return false
	}
	return next.rank() > s.rank()
}

// Message es inmutable salvo por los campos de estado y sellos de tiempo
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	UserID         *string       `json:"userId,omitempty"`
	Content        string        `json:"content"`
	MessageType    MessageType   `json:"messageType"`
	Direction      Direction     `json:"direction"`
	Status         MessageStatus `json:"status"`
	IsRead         bool          `json:"isRead"`
	ExternalID     string        `json:"externalId,omitempty"`
	MediaRef       string        `json:"mediaRef,omitempty"`
	FailureReason  string        `json:"failureReason,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	SentAt         *time.Time    `json:"sentAt,omitempty"`
	DeliveredAt    *time.Time    `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time    `json:"readAt,omitempty"`

	User *User `json:"user,omitempty"`

	// GatewayResponse es la respuesta cruda del envío; no se persiste
	GatewayResponse map[string]any `json:"-"`
}
