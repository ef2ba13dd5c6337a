package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/sirupsen/logrus"
)

// autoAssignBatch limita cuántas conversaciones en espera se reparten por llamada
const autoAssignBatch = 50

// pickKey serializa la selección de agente de todas las colas: la carga de un
// agente se cuenta en todas sus colas
const pickKey = "assign:agents"

// AssignmentEngine asigna conversaciones a agentes, manual o automáticamente
type AssignmentEngine struct {
	conversations domain.ConversationRepository
	queues        domain.QueueRepository
	users         domain.UserRepository
	notifier      domain.Notifier
	exec          KeyedExecutor
	now           func() time.Time
}

// NewAssignmentEngine usa exec para serializar la selección de agente.
// exec no debe ser el mismo pool que invoca AutoAssign.
func NewAssignmentEngine(
	conversations domain.ConversationRepository,
	queues domain.QueueRepository,
	users domain.UserRepository,
	notifier domain.Notifier,
	exec KeyedExecutor,
) *AssignmentEngine {
	return &AssignmentEngine{
		conversations: conversations,
		queues:        queues,
		users:         users,
		notifier:      notifierOrNoop(notifier),
		exec:          executorOrDirect(exec),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Assign fija el agente y fuerza ATTENDING, también si ya estaba asignada
func (e *AssignmentEngine) Assign(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	if userID == "" {
		return nil, pkgError.ValidationError("userId is required")
	}
	conv, err := e.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := conv.AssignTo(user.ID, e.now()); err != nil {
		return nil, err
	}
	if err := e.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	conv.User = user

	logrus.Infof("[ASSIGN] Conversation %s assigned to %s", conv.ID, user.ID)
	e.notifier.Broadcast(conv.ID, conversationUpdated(conv))
	return conv, nil
}

// AutoAssign elige al miembro activo con menos conversaciones en atención
// por debajo del límite de la cola
func (e *AssignmentEngine) AutoAssign(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv, err := e.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.QueueID == nil || *conv.QueueID == "" {
		return nil, pkgError.ValidationError("conversation has no queue")
	}
	queue, err := e.queues.GetByID(ctx, *conv.QueueID)
	if err != nil {
		return nil, err
	}
	if !queue.AutoAssign {
		return nil, pkgError.ValidationError(fmt.Sprintf("queue %s does not allow auto-assign", queue.Name))
	}

	var assigned *domain.Conversation
	err = e.exec.Do(ctx, pickKey, func(ctx context.Context) error {
		// releer dentro de la sección serializada
		current, err := e.conversations.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		assigned, err = e.assignLeastLoaded(ctx, queue, current)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.notifier.Broadcast(assigned.ID, conversationUpdated(assigned))
	return assigned, nil
}

// AutoAssignQueue reparte la conversación indicada o las más antiguas en espera
// sin agente. Devuelve las que se asignaron.
func (e *AssignmentEngine) AutoAssignQueue(ctx context.Context, queueID, conversationID string) ([]domain.Conversation, error) {
	queue, err := e.queues.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if conversationID != "" {
		conv, err := e.conversations.GetByID(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.QueueID == nil || *conv.QueueID != queue.ID {
			return nil, pkgError.ValidationError("conversation does not belong to this queue")
		}
		assigned, err := e.AutoAssign(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		return []domain.Conversation{*assigned}, nil
	}

	if !queue.AutoAssign {
		return nil, pkgError.ValidationError(fmt.Sprintf("queue %s does not allow auto-assign", queue.Name))
	}

	waiting, err := e.conversations.ListWaitingUnassigned(ctx, queue.ID, autoAssignBatch)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Conversation, 0, len(waiting))
	for _, conv := range waiting {
		assigned, err := e.AutoAssign(ctx, conv.ID)
		if errors.Is(err, domain.ErrNoAvailableAgent) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, *assigned)
	}

	if len(out) == 0 && len(waiting) > 0 {
		return out, domain.ErrNoAvailableAgent
	}
	return out, nil
}

func (e *AssignmentEngine) assignLeastLoaded(ctx context.Context, queue *domain.Queue, conv *domain.Conversation) (*domain.Conversation, error) {
	if conv.Status.IsTerminal() {
		return nil, pkgError.ConflictError(fmt.Sprintf("conversation is %s and cannot be assigned", conv.Status))
	}

	members, err := e.queues.Members(ctx, queue.ID)
	if err != nil {
		return nil, err
	}

	var chosen *domain.User
	var chosenLoad int64
	for i := range members {
		m := &members[i]
		if !m.IsActive {
			continue
		}
		load, err := e.conversations.CountAttendingByUser(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if load >= int64(queue.MaxConversations) {
			continue
		}
		// empate: gana el primero en orden de ingreso a la cola
		if chosen == nil || load < chosenLoad {
			chosen, chosenLoad = m, load
		}
	}

	if chosen == nil {
		logrus.Debugf("[ASSIGN] No available agent in queue %s for conversation %s", queue.Name, conv.ID)
		return nil, domain.ErrNoAvailableAgent
	}

	if err := conv.AssignTo(chosen.ID, e.now()); err != nil {
		return nil, err
	}
	if err := e.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	conv.User = chosen

	logrus.Infof("[ASSIGN] Conversation %s auto-assigned to %s (load %d/%d)", conv.ID, chosen.ID, chosenLoad, queue.MaxConversations)
	return conv, nil
}
