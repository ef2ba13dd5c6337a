package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbound_TextMessageCreatesContactAndConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	geral := h.queue(t, "Geral", false, 0)

	require.NoError(t, h.inbound.HandleWebhook(ctx, textWebhook("5511999999999", "Maria", "wamid.1", "Olá")))

	contact, err := h.contacts.GetByPhone(ctx, "5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "Maria", contact.Name)

	conv, err := h.conversations.FindOpenByContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, conv.Status)
	assert.Equal(t, domain.PriorityMedium, conv.Priority)
	require.NotNil(t, conv.QueueID)
	assert.Equal(t, geral.ID, *conv.QueueID)

	msgs, _, err := h.messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Olá", msgs[0].Content)
	assert.Equal(t, domain.Inbound, msgs[0].Direction)
	assert.Equal(t, domain.MessageDelivered, msgs[0].Status)
	assert.False(t, msgs[0].IsRead)
	assert.Equal(t, "wamid.1", msgs[0].ExternalID)
	assert.NotNil(t, msgs[0].DeliveredAt)

	assert.Equal(t, 1, h.notifier.globalEvents(domain.EventConversationUpdated))
	assert.Equal(t, 1, h.notifier.roomEvents(domain.EventNewMessage))
}

func TestInbound_RedeliveryIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.queue(t, "Geral", false, 0)

	payload := textWebhook("5511999999999", "Maria", "wamid.dup", "Olá")
	require.NoError(t, h.inbound.HandleWebhook(ctx, payload))
	require.NoError(t, h.inbound.HandleWebhook(ctx, payload))

	contact, err := h.contacts.GetByPhone(ctx, "5511999999999")
	require.NoError(t, err)
	conv, err := h.conversations.FindOpenByContact(ctx, contact.ID)
	require.NoError(t, err)

	_, total, err := h.messages.ListByConversation(ctx, conv.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestInbound_ConcurrentMessagesShareOneConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.queue(t, "Geral", false, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- h.inbound.HandleWebhook(ctx, textWebhook("5511977776666", "Rita", fmt.Sprintf("wamid.c%d", i), "oi"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	contact, err := h.contacts.GetByPhone(ctx, "5511977776666")
	require.NoError(t, err)
	convs, err := h.conversations.ListByContact(ctx, contact.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	_, total, err := h.messages.ListByConversation(ctx, convs[0].ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
}

func TestInbound_AutoAssignsNewConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := h.queue(t, "Geral", true, 2)
	agent := h.agent(t, "ana", q.ID)

	require.NoError(t, h.inbound.HandleWebhook(ctx, textWebhook("5511955554444", "Joana", "wamid.a1", "preciso de ajuda")))

	contact, err := h.contacts.GetByPhone(ctx, "5511955554444")
	require.NoError(t, err)
	conv, err := h.conversations.FindOpenByContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAttending, conv.Status)
	require.NotNil(t, conv.UserID)
	assert.Equal(t, agent.ID, *conv.UserID)
}

func TestInbound_NoAgentLeavesConversationWaiting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.queue(t, "Geral", true, 2)

	require.NoError(t, h.inbound.HandleWebhook(ctx, textWebhook("5511944443333", "Paulo", "wamid.n1", "alô")))

	contact, err := h.contacts.GetByPhone(ctx, "5511944443333")
	require.NoError(t, err)
	conv, err := h.conversations.FindOpenByContact(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, conv.Status)
	assert.Nil(t, conv.UserID)
}

func TestInbound_StatusUpdatesAdvanceOutboundMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.activeConnection(t)
	conv := h.openConversation(t, "5511933332222", nil)

	msg, err := h.ledger.Record(ctx, recordText(conv.ID, "bom dia"))
	require.NoError(t, err)

	require.NoError(t, h.inbound.HandleWebhook(ctx, statusWebhook(msg.ExternalID, "read")))
	require.NoError(t, h.inbound.HandleWebhook(ctx, statusWebhook(msg.ExternalID, "delivered")))

	stored, err := h.messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageRead, stored.Status)
	assert.NotNil(t, stored.ReadAt)

	// unknown ids are ignored
	assert.NoError(t, h.inbound.HandleWebhook(ctx, statusWebhook("wamid.unknown", "read")))
}

func TestInbound_InvalidPayload(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.inbound.HandleWebhook(context.Background(), []byte(`not json`)))
}
