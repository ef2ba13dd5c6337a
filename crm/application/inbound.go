package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/sirupsen/logrus"
)

// InboundProcessor convierte cada webhook en contactos, conversaciones y mensajes
type InboundProcessor struct {
	normalizer domain.InboundNormalizer
	seen       domain.SeenStore
	resolver   *Resolver
	ledger     *Ledger
	assignment *AssignmentEngine
	notifier   domain.Notifier
	exec       KeyedExecutor
}

// NewInboundProcessor serializa por teléfono con exec; debe ser un pool distinto
// del usado por el AssignmentEngine.
func NewInboundProcessor(
	normalizer domain.InboundNormalizer,
	seen domain.SeenStore,
	resolver *Resolver,
	ledger *Ledger,
	assignment *AssignmentEngine,
	notifier domain.Notifier,
	exec KeyedExecutor,
) *InboundProcessor {
	return &InboundProcessor{
		normalizer: normalizer,
		seen:       seen,
		resolver:   resolver,
		ledger:     ledger,
		assignment: assignment,
		notifier:   notifierOrNoop(notifier),
		exec:       executorOrDirect(exec),
	}
}

// HandleWebhook procesa el payload crudo. Cualquier error se devuelve para que
// la Cloud API reintente la entrega.
func (p *InboundProcessor) HandleWebhook(ctx context.Context, raw []byte) error {
	events, err := p.normalizer.NormalizeInbound(ctx, raw)
	if err != nil {
		return err
	}

	var errs []error
	for _, ev := range events {
		switch {
		case ev.Message != nil:
			if err := p.handleMessage(ctx, *ev.Message); err != nil {
				logrus.WithError(err).Errorf("[WEBHOOK] Failed to process message %s from %s", ev.Message.ExternalID, ev.Message.From)
				errs = append(errs, err)
			}
		case ev.Status != nil:
			st := *ev.Status
			err := p.exec.Do(ctx, "wamid:"+st.ExternalID, func(ctx context.Context) error {
				return p.ledger.ApplyStatusUpdate(ctx, st.ExternalID, st.Status, st.Timestamp)
			})
			if err != nil {
				logrus.WithError(err).Errorf("[WEBHOOK] Failed to apply status %s to %s", st.Status, st.ExternalID)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (p *InboundProcessor) handleMessage(ctx context.Context, msg domain.InboundMessage) error {
	seenKey := ""
	if msg.ExternalID != "" && p.seen != nil {
		seenKey = "msg:" + msg.ExternalID
		first, err := p.seen.MarkSeen(ctx, seenKey)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", msg.ExternalID, err)
		}
		if !first {
			logrus.Debugf("[WEBHOOK] Duplicate delivery of %s skipped", msg.ExternalID)
			return nil
		}
	}

	err := p.exec.Do(ctx, "phone:"+msg.From, func(ctx context.Context) error {
		return p.processMessage(ctx, msg)
	})
	if err != nil && seenKey != "" {
		// permitir que la reentrega lo procese
		if ferr := p.seen.Forget(ctx, seenKey); ferr != nil {
			logrus.WithError(ferr).Warnf("[WEBHOOK] Could not release dedup key %s", seenKey)
		}
	}
	return err
}

func (p *InboundProcessor) processMessage(ctx context.Context, in domain.InboundMessage) error {
	res, err := p.resolver.Resolve(ctx, in.From, in.DisplayName)
	if err != nil {
		return err
	}

	sentAt := in.Timestamp
	if _, err := p.ledger.Record(ctx, RecordInput{
		ConversationID: res.Conversation.ID,
		Direction:      domain.Inbound,
		Content:        in.Content,
		Type:           in.Type,
		ExternalID:     in.ExternalID,
		MediaRef:       in.MediaRef,
		SentAt:         &sentAt,
	}); err != nil {
		return err
	}

	logrus.Infof("[WEBHOOK] %s message from %s stored in conversation %s", in.Type, in.From, res.Conversation.ID)

	if !res.IsNew {
		return nil
	}

	// nadie está en la sala de una conversación recién creada
	p.notifier.BroadcastAll(conversationUpdated(res.Conversation))

	if res.Conversation.Queue == nil || !res.Conversation.Queue.AutoAssign || p.assignment == nil {
		return nil
	}
	if _, err := p.assignment.AutoAssign(ctx, res.Conversation.ID); err != nil {
		if errors.Is(err, domain.ErrNoAvailableAgent) {
			logrus.Infof("[ASSIGN] Conversation %s stays WAITING: %v", res.Conversation.ID, err)
			return nil
		}
		logrus.WithError(err).Warnf("[ASSIGN] Auto-assign failed for conversation %s", res.Conversation.ID)
	}
	return nil
}
