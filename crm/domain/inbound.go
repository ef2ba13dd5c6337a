package domain

import (
	"context"
	"time"
)

// InboundMessage es un mensaje recibido ya normalizado desde el webhook
type InboundMessage struct {
	From        string
	DisplayName string
	ExternalID  string
	Type        MessageType
	Content     string
	MediaRef    string
	Timestamp   time.Time
}

// StatusUpdate es un recibo de entrega de un mensaje enviado
type StatusUpdate struct {
	ExternalID string
	Status     MessageStatus
	Timestamp  time.Time
	Recipient  string
}

// InboundEvent lleva exactamente uno de Message o Status
type InboundEvent struct {
	Message *InboundMessage
	Status  *StatusUpdate
}

// InboundNormalizer traduce el payload crudo del webhook a eventos internos
type InboundNormalizer interface {
	NormalizeInbound(ctx context.Context, raw []byte) ([]InboundEvent, error)
}
