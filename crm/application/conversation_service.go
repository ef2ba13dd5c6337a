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

// ConversationService agrupa las consultas y transiciones de conversaciones
type ConversationService struct {
	conversations domain.ConversationRepository
	contacts      domain.ContactRepository
	queues        domain.QueueRepository
	messages      domain.MessageRepository
	notifier      domain.Notifier
	now           func() time.Time
}

func NewConversationService(
	conversations domain.ConversationRepository,
	contacts domain.ContactRepository,
	queues domain.QueueRepository,
	messages domain.MessageRepository,
	notifier domain.Notifier,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		contacts:      contacts,
		queues:        queues,
		messages:      messages,
		notifier:      notifierOrNoop(notifier),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ConversationDetail es una conversación con todos sus mensajes en orden
type ConversationDetail struct {
	*domain.Conversation
	Messages []domain.Message `json:"messages"`
}

// CreateConversationInput son los datos para abrir una conversación manualmente
type CreateConversationInput struct {
	ContactID string
	QueueID   *string
	Priority  domain.Priority
}

func (s *ConversationService) List(ctx context.Context, filter domain.ConversationFilter, page, limit int) ([]domain.ConversationSummary, utils.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, utils.Pagination{}, pkgError.ValidationError("invalid status filter")
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	items, total, err := s.conversations.List(ctx, filter)
	if err != nil {
		return nil, utils.Pagination{}, err
	}
	return items, utils.NewPagination(page, limit, total), nil
}

func (s *ConversationService) Get(ctx context.Context, id string) (*ConversationDetail, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, _, err := s.messages.ListByConversation(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// Create abre una conversación; falla si el contacto ya tiene una abierta
func (s *ConversationService) Create(ctx context.Context, in CreateConversationInput) (*domain.Conversation, error) {
	contact, err := s.contacts.GetByID(ctx, in.ContactID)
	if err != nil {
		return nil, err
	}

	if _, err := s.conversations.FindOpenByContact(ctx, contact.ID); err == nil {
		return nil, domain.ErrOpenConversationExists
	} else if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, pkgError.ValidationError("invalid priority")
	}

	conv := &domain.Conversation{
		ContactID:     contact.ID,
		Status:        domain.StatusWaiting,
		Priority:      priority,
		LastMessageAt: s.now(),
	}
	if in.QueueID != nil && *in.QueueID != "" {
		if _, err := s.queues.GetByID(ctx, *in.QueueID); err != nil {
			return nil, err
		}
		conv.QueueID = in.QueueID
	}

	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	created, err := s.conversations.GetByID(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.BroadcastAll(conversationUpdated(created))
	return created, nil
}

// UpdateStatus aplica la máquina de estados y notifica a la sala
func (s *ConversationService) UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := conv.Transition(status, s.now()); err != nil {
		return nil, err
	}
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}

	logrus.Infof("[CONVERSATION] %s moved to %s", conv.ID, conv.Status)
	s.notifier.Broadcast(conv.ID, conversationUpdated(conv))
	return conv, nil
}

func (s *ConversationService) Stats(ctx context.Context) (domain.ConversationStats, error) {
	return s.conversations.Stats(ctx)
}

// CloseInactive cierra las conversaciones abiertas sin actividad desde hace más de timeout
func (s *ConversationService) CloseInactive(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, nil
	}

	now := s.now()
	cutoff := now.Add(-timeout)
	stale, err := s.conversations.ListInactive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range stale {
		conv := &stale[i]
		// la condición se reevalúa en el UPDATE; un mensaje nuevo la invalida
		ok, err := s.conversations.CloseIfInactive(ctx, conv.ID, cutoff, now)
		if err != nil {
			logrus.WithError(err).Errorf("[SCHEDULER] Failed to close conversation %s", conv.ID)
			continue
		}
		if !ok {
			logrus.Debugf("[SCHEDULER] Conversation %s got activity, skipped", conv.ID)
			continue
		}
		closedAt := now
		conv.Status = domain.StatusClosed
		conv.ClosedAt = &closedAt
		conv.UpdatedAt = now
		closed++
		s.notifier.Broadcast(conv.ID, conversationUpdated(conv))
	}
	return closed, nil
}
