package domain

import (
	"context"
	"time"
)

// SendResult es la respuesta de la Cloud API a un envío
type SendResult struct {
	ExternalID string         `json:"externalId"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// MediaMessage describe un envío de imagen, documento, audio o video
type MediaMessage struct {
	To       string
	Kind     MessageType
	URL      string
	Caption  string
	Filename string
}

// Gateway es el adaptador hacia la WhatsApp Cloud API para una conexión
type Gateway interface {
	SendText(ctx context.Context, to, body string) (SendResult, error)
	SendMedia(ctx context.Context, msg MediaMessage) (SendResult, error)
	MarkAsRead(ctx context.Context, externalID string) error
	GetMediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, string, error)
	Ping(ctx context.Context) error
}

// GatewayFactory construye un Gateway con las credenciales de una conexión
type GatewayFactory interface {
	ForConnection(conn *Connection) Gateway
}

// EventType son los eventos que el hub empuja a los clientes
type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventConversationUpdated EventType = "conversation_updated"
	EventMessageRead         EventType = "message_read"
	EventUserStatusChanged   EventType = "user_status_changed"
)

// Event es un evento de servidor; Payload se aplana junto a type y timestamp
type Event struct {
	Type    EventType
	Payload map[string]any
}

// Notifier difunde eventos a las sesiones suscritas a una conversación
type Notifier interface {
	Broadcast(conversationID string, event Event)
	BroadcastAll(event Event)
}

// SeenStore deduplica eventos reentregados por el webhook
type SeenStore interface {
	// MarkSeen retorna true la primera vez que se ve la clave dentro del TTL
	MarkSeen(ctx context.Context, key string) (bool, error)
	// Forget libera la clave para que una reentrega vuelva a procesarse
	Forget(ctx context.Context, key string) error
}

// TypingState indica quién está escribiendo en una conversación
type TypingState struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TypingStore guarda estados temporales de escritura de los agentes
type TypingStore interface {
	Update(ctx context.Context, conversationID, userID string, isTyping bool) error
	List(ctx context.Context, conversationID string) ([]TypingState, error)
}
