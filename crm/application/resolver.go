package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Resolver encuentra o crea el Contact y la Conversation abierta de un remitente
type Resolver struct {
	contacts      domain.ContactRepository
	conversations domain.ConversationRepository
	queues        domain.QueueRepository
	now           func() time.Time
}

func NewResolver(contacts domain.ContactRepository, conversations domain.ConversationRepository, queues domain.QueueRepository) *Resolver {
	return &Resolver{
		contacts:      contacts,
		conversations: conversations,
		queues:        queues,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ResolveResult es el resultado de Resolve; IsNew indica que la conversación se creó ahora
type ResolveResult struct {
	Contact      *domain.Contact
	Conversation *domain.Conversation
	IsNew        bool
}

// Resolve asume que las llamadas para un mismo teléfono llegan serializadas
func (r *Resolver) Resolve(ctx context.Context, fromPhone, displayName string) (*ResolveResult, error) {
	phone := utils.DigitsOnly(fromPhone)
	if phone == "" {
		return nil, pkgError.ValidationError("sender phone is required")
	}

	contact, err := r.findOrCreateContact(ctx, phone, displayName)
	if err != nil {
		return nil, err
	}

	now := r.now()
	conv, err := r.conversations.FindOpenByContact(ctx, contact.ID)
	switch {
	case err == nil:
		touched, err := r.conversations.TouchOpen(ctx, conv.ID, now)
		if err != nil {
			return nil, err
		}
		if touched {
			conv.LastMessageAt = now
			return &ResolveResult{Contact: contact, Conversation: conv}, nil
		}
		// cerrada entre la lectura y el touch: se abre una nueva
		logrus.Debugf("[RESOLVER] Conversation %s closed concurrently, opening a new one", conv.ID)
	case !errors.Is(err, domain.ErrConversationNotFound):
		return nil, err
	}

	conv = &domain.Conversation{
		ContactID:     contact.ID,
		Status:        domain.StatusWaiting,
		Priority:      domain.PriorityMedium,
		LastMessageAt: now,
	}

	queue, err := r.queues.FirstActive(ctx)
	switch {
	case err == nil:
		conv.QueueID = &queue.ID
		conv.Queue = queue
	case errors.Is(err, domain.ErrQueueNotFound):
		logrus.Warnf("[RESOLVER] No active queue, conversation for %s stays unqueued", phone)
	default:
		return nil, err
	}

	if err := r.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	conv.Contact = contact

	logrus.Infof("[RESOLVER] New conversation %s for contact %s", conv.ID, phone)
	return &ResolveResult{Contact: contact, Conversation: conv, IsNew: true}, nil
}

func (r *Resolver) findOrCreateContact(ctx context.Context, phone, displayName string) (*domain.Contact, error) {
	contact, err := r.contacts.GetByPhone(ctx, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, domain.ErrContactNotFound) {
		return nil, err
	}

	name := displayName
	if name == "" {
		name = domain.DefaultContactName(phone)
	}
	contact = &domain.Contact{Phone: phone, Name: name, Tags: []string{}}
	if err := r.contacts.Create(ctx, contact); err != nil {
		// otro proceso lo creó primero
		if errors.Is(err, domain.ErrDuplicateContact) {
			return r.contacts.GetByPhone(ctx, phone)
		}
		return nil, err
	}
	return contact, nil
}
