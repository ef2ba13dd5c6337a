package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/sirupsen/logrus"
)

// ActiveConnectionProvider entrega las credenciales activas de la Cloud API
type ActiveConnectionProvider interface {
	Active(ctx context.Context) (*domain.Connection, error)
}

// RecordInput describe un mensaje a registrar en el ledger
type RecordInput struct {
	ConversationID string
	Direction      domain.Direction
	Content        string
	Type           domain.MessageType
	UserID         *string
	ExternalID     string
	MediaRef       string
	Caption        string
	Filename       string
	SentAt         *time.Time
}

// Ledger registra mensajes entrantes y salientes y sus recibos de entrega
type Ledger struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	connections   ActiveConnectionProvider
	gateways      domain.GatewayFactory
	notifier      domain.Notifier
	now           func() time.Time
}

func NewLedger(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	connections ActiveConnectionProvider,
	gateways domain.GatewayFactory,
	notifier domain.Notifier,
) *Ledger {
	return &Ledger{
		conversations: conversations,
		messages:      messages,
		connections:   connections,
		gateways:      gateways,
		notifier:      notifierOrNoop(notifier),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Record persiste un mensaje. Los OUTBOUND se envían antes por el gateway; si el
// envío falla se guarda FAILED y se devuelve el mensaje junto al error.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (*domain.Message, error) {
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	if !in.Type.Valid() {
		return nil, pkgError.ValidationError(fmt.Sprintf("invalid message type %q", in.Type))
	}

	conv, err := l.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	msg := &domain.Message{
		ConversationID: conv.ID,
		UserID:         in.UserID,
		Content:        in.Content,
		MessageType:    in.Type,
		Direction:      in.Direction,
		ExternalID:     in.ExternalID,
		MediaRef:       in.MediaRef,
		CreatedAt:      now,
	}

	var sendErr error
	switch in.Direction {
	case domain.Inbound:
		msg.Status = domain.MessageDelivered
		msg.IsRead = false
		msg.DeliveredAt = &now
		if in.SentAt != nil {
			msg.SentAt = in.SentAt
		}
	case domain.Outbound:
		if err := l.validateOutbound(conv, in); err != nil {
			return nil, err
		}
		conn, err := l.connections.Active(ctx)
		if err != nil {
			return nil, err
		}

		result, err := l.dispatch(ctx, l.gateways.ForConnection(conn), conv.Contact.Phone, in)
		if err != nil {
			sendErr = err
			msg.Status = domain.MessageFailed
			msg.FailureReason = err.Error()
			logrus.WithError(err).Warnf("[LEDGER] Outbound message to %s failed", conv.Contact.Phone)
		} else {
			msg.Status = domain.MessageSent
			msg.SentAt = &now
			msg.ExternalID = result.ExternalID
			msg.GatewayResponse = result.Raw
		}
	default:
		return nil, pkgError.ValidationError(fmt.Sprintf("invalid direction %q", in.Direction))
	}

	if err := l.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := l.conversations.TouchLastMessage(ctx, conv.ID, now); err != nil {
		return nil, err
	}

	l.notifier.Broadcast(conv.ID, newMessage(msg))
	return msg, sendErr
}

func (l *Ledger) validateOutbound(conv *domain.Conversation, in RecordInput) error {
	if conv.Contact == nil {
		return pkgError.InternalServerError("conversation loaded without contact")
	}
	if conv.Contact.IsBlocked {
		return domain.ErrContactBlocked
	}
	if in.Type == domain.MessageText && in.Content == "" {
		return pkgError.ValidationError("content is required")
	}
	if in.Type.IsMedia() && in.MediaRef == "" {
		return pkgError.ValidationError("mediaUrl is required for media messages")
	}
	return nil
}

func (l *Ledger) dispatch(ctx context.Context, gw domain.Gateway, phone string, in RecordInput) (domain.SendResult, error) {
	if in.Type == domain.MessageText {
		return gw.SendText(ctx, phone, in.Content)
	}

	caption := in.Caption
	if caption == "" && in.Type != domain.MessageDocument {
		caption = in.Content
	}
	filename := in.Filename
	if filename == "" && in.Type == domain.MessageDocument {
		filename = in.Content
	}
	return gw.SendMedia(ctx, domain.MediaMessage{
		To:       phone,
		Kind:     in.Type,
		URL:      in.MediaRef,
		Caption:  caption,
		Filename: filename,
	})
}

// MarkRead marca como leídos los mensajes INBOUND de la conversación
func (l *Ledger) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	if _, err := l.conversations.GetByID(ctx, conversationID); err != nil {
		return 0, err
	}

	count, err := l.messages.MarkInboundRead(ctx, conversationID, l.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		l.notifier.Broadcast(conversationID, messagesRead(conversationID, userID, count))
	}
	return count, nil
}

// ApplyStatusUpdate avanza el estado de los mensajes con ese externalId.
// Retrocesos e ids desconocidos se ignoran.
func (l *Ledger) ApplyStatusUpdate(ctx context.Context, externalID string, status domain.MessageStatus, at time.Time) error {
	msgs, err := l.messages.FindByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		logrus.Debugf("[LEDGER] Status %s for unknown message %s ignored", status, externalID)
		return nil
	}
	if at.IsZero() {
		at = l.now()
	}

	for i := range msgs {
		msg := &msgs[i]
		if !msg.Status.CanAdvanceTo(status) {
			logrus.Debugf("[LEDGER] Ignoring %s -> %s for %s", msg.Status, status, msg.ID)
			continue
		}

		msg.Status = status
		switch status {
		case domain.MessageSent:
			if msg.SentAt == nil {
				msg.SentAt = &at
			}
		case domain.MessageDelivered:
			msg.DeliveredAt = &at
		case domain.MessageRead:
			if msg.DeliveredAt == nil {
				msg.DeliveredAt = &at
			}
			msg.ReadAt = &at
		case domain.MessageFailed:
			if msg.FailureReason == "" {
				msg.FailureReason = "reported as failed by whatsapp"
			}
		}

		if err := l.messages.UpdateStatus(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// ListMessages pagina los mensajes de una conversación en orden cronológico
func (l *Ledger) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]domain.Message, utils.Pagination, error) {
	if _, err := l.conversations.GetByID(ctx, conversationID); err != nil {
		return nil, utils.Pagination{}, err
	}
	msgs, total, err := l.messages.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, utils.Pagination{}, err
	}
	return msgs, utils.NewPagination(page, limit, total), nil
}

// IsGatewayFailure indica si err viene de la Cloud API y no de la validación local
func IsGatewayFailure(err error) bool {
	var gwErr *pkgError.GatewayError
	var timeoutErr pkgError.GatewayTimeoutError
	return errors.As(err, &gwErr) || errors.As(err, &timeoutErr)
}
