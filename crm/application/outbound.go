package application

import (
	"context"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/sirupsen/logrus"
)

// SendToPhoneInput es un envío directo a un número, fuera de una conversación conocida
type SendToPhoneInput struct {
	To       string
	Message  string
	Type     domain.MessageType
	MediaURL string
	Filename string
	Caption  string
}

// SendToPhoneResult devuelve el mensaje registrado y la conversación donde quedó
type SendToPhoneResult struct {
	Message      *domain.Message      `json:"message"`
	Conversation *domain.Conversation `json:"conversation"`
	IsNew        bool                 `json:"isNew"`
}

// OutboundSender envía a un teléfono resolviendo contacto y conversación como
// si fuera un mensaje entrante, y registra el envío en el ledger.
type OutboundSender struct {
	resolver *Resolver
	ledger   *Ledger
	notifier domain.Notifier
	exec     KeyedExecutor
}

// NewOutboundSender usa el mismo pool por teléfono que el InboundProcessor
func NewOutboundSender(resolver *Resolver, ledger *Ledger, notifier domain.Notifier, exec KeyedExecutor) *OutboundSender {
	return &OutboundSender{
		resolver: resolver,
		ledger:   ledger,
		notifier: notifierOrNoop(notifier),
		exec:     executorOrDirect(exec),
	}
}

func (s *OutboundSender) SendToPhone(ctx context.Context, in SendToPhoneInput) (*SendToPhoneResult, error) {
	phone := utils.DigitsOnly(in.To)
	if phone == "" {
		return nil, pkgError.ValidationError("to is required")
	}
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	switch {
	case in.Type == domain.MessageText && in.Message == "":
		return nil, pkgError.ValidationError("message is required")
	case in.Type.IsMedia() && in.MediaURL == "":
		return nil, pkgError.ValidationError("mediaUrl is required for media messages")
	case in.Type == domain.MessageDocument && in.Filename == "":
		return nil, pkgError.ValidationError("filename is required for document messages")
	}

	// sin credenciales no se crea nada
	if _, err := s.ledger.connections.Active(ctx); err != nil {
		return nil, err
	}

	var out SendToPhoneResult
	err := s.exec.Do(ctx, "phone:"+phone, func(ctx context.Context) error {
		res, err := s.resolver.Resolve(ctx, phone, "")
		if err != nil {
			return err
		}
		out.Conversation = res.Conversation
		out.IsNew = res.IsNew
		if res.IsNew {
			s.notifier.BroadcastAll(conversationUpdated(res.Conversation))
		}

		content := in.Message
		if content == "" {
			content = in.Caption
		}
		msg, err := s.ledger.Record(ctx, RecordInput{
			ConversationID: res.Conversation.ID,
			Direction:      domain.Outbound,
			Content:        content,
			Type:           in.Type,
			MediaRef:       in.MediaURL,
			Caption:        in.Caption,
			Filename:       in.Filename,
		})
		out.Message = msg
		return err
	})
	if err != nil {
		if out.Message != nil {
			logrus.WithError(err).Warnf("[LEDGER] Direct send to %s stored as FAILED", phone)
			return &out, err
		}
		return nil, err
	}
	return &out, nil
}
