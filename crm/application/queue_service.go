package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/validations"
	"github.com/sirupsen/logrus"
)

const defaultQueueColor = "#3B82F6"

// QueueService administra colas y la membresía de agentes
type QueueService struct {
	queues        domain.QueueRepository
	conversations domain.ConversationRepository
}

func NewQueueService(queues domain.QueueRepository, conversations domain.ConversationRepository) *QueueService {
	return &QueueService{queues: queues, conversations: conversations}
}

func (s *QueueService) List(ctx context.Context) ([]domain.QueueSummary, error) {
	return s.queues.List(ctx)
}

func (s *QueueService) Create(ctx context.Context, request domain.CreateQueueRequest) (*domain.Queue, error) {
	if err := validations.ValidateCreateQueue(ctx, request); err != nil {
		return nil, err
	}

	queue := &domain.Queue{
		Name:             strings.TrimSpace(request.Name),
		Description:      request.Description,
		Color:            request.Color,
		Priority:         request.Priority,
		IsActive:         true,
		AutoAssign:       request.AutoAssign,
		MaxConversations: request.MaxConversations,
	}
	if queue.Color == "" {
		queue.Color = defaultQueueColor
	}
	if request.IsActive != nil {
		queue.IsActive = *request.IsActive
	}

	if err := s.queues.Create(ctx, queue); err != nil {
		return nil, err
	}
	logrus.Infof("[QUEUE] Created queue %s (%s)", queue.Name, queue.ID)
	return queue, nil
}

func (s *QueueService) Update(ctx context.Context, id string, request domain.UpdateQueueRequest) (*domain.Queue, error) {
	if err := validations.ValidateUpdateQueue(ctx, request); err != nil {
		return nil, err
	}

	queue, err := s.queues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Name != nil {
		queue.Name = strings.TrimSpace(*request.Name)
	}
	if request.Description != nil {
		queue.Description = *request.Description
	}
	if request.Color != nil {
		queue.Color = *request.Color
	}
	if request.Priority != nil {
		queue.Priority = *request.Priority
	}
	if request.IsActive != nil {
		queue.IsActive = *request.IsActive
	}
	if request.AutoAssign != nil {
		queue.AutoAssign = *request.AutoAssign
	}
	if request.MaxConversations != nil {
		queue.MaxConversations = *request.MaxConversations
	}

	if err := s.queues.Update(ctx, queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// Delete rechaza colas con conversaciones en WAITING o ATTENDING
func (s *QueueService) Delete(ctx context.Context, id string) error {
	if _, err := s.queues.GetByID(ctx, id); err != nil {
		return err
	}

	open, err := s.conversations.CountOpenByQueue(ctx, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return pkgError.ConflictError(fmt.Sprintf("queue has %d active conversation(s)", open))
	}

	if err := s.queues.Delete(ctx, id); err != nil {
		return err
	}
	logrus.Infof("[QUEUE] Deleted queue %s", id)
	return nil
}

func (s *QueueService) AddUser(ctx context.Context, queueID, userID string) (*domain.QueueUser, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgError.ValidationError("userId is required")
	}
	return s.queues.AddUser(ctx, queueID, userID)
}

func (s *QueueService) RemoveUser(ctx context.Context, queueID, userID string) error {
	return s.queues.RemoveUser(ctx, queueID, userID)
}
