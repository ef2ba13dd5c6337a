package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/core/database"
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/crm/repository"
	"github.com/AzielCF/az-crm/infrastructure/whatsapp/cloudapi"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu      sync.Mutex
	texts   []string
	media   []domain.MediaMessage
	pings   int
	sendErr error
	seq     int
}

func (g *fakeGateway) ForConnection(*domain.Connection) domain.Gateway { return g }

func (g *fakeGateway) nextID() string {
	g.seq++
	return fmt.Sprintf("wamid.out.%d", g.seq)
}

func (g *fakeGateway) SendText(_ context.Context, to, body string) (domain.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return domain.SendResult{}, g.sendErr
	}
	g.texts = append(g.texts, to+":"+body)
	return domain.SendResult{ExternalID: g.nextID()}, nil
}

func (g *fakeGateway) SendMedia(_ context.Context, msg domain.MediaMessage) (domain.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return domain.SendResult{}, g.sendErr
	}
	g.media = append(g.media, msg)
	return domain.SendResult{ExternalID: g.nextID()}, nil
}

func (g *fakeGateway) MarkAsRead(context.Context, string) error { return nil }

func (g *fakeGateway) GetMediaURL(_ context.Context, mediaID string) (string, error) {
	return "https://lookaside.example.com/" + mediaID, nil
}

func (g *fakeGateway) DownloadMedia(_ context.Context, url string) ([]byte, string, error) {
	return []byte(url), "image/jpeg", nil
}

func (g *fakeGateway) Ping(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pings++
	return g.sendErr
}

type fakeNotifier struct {
	mu     sync.Mutex
	rooms  []string
	events []domain.Event
	global []domain.Event
}

func (n *fakeNotifier) Broadcast(conversationID string, event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, conversationID)
	n.events = append(n.events, event)
}

func (n *fakeNotifier) BroadcastAll(event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.global = append(n.global, event)
}

func (n *fakeNotifier) count(events []domain.Event, t domain.EventType) int {
	total := 0
	for _, e := range events {
		if e.Type == t {
			total++
		}
	}
	return total
}

func (n *fakeNotifier) roomEvents(t domain.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count(n.events, t)
}

func (n *fakeNotifier) globalEvents(t domain.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count(n.global, t)
}

type harness struct {
	contacts      *repository.ContactGormRepository
	conversations *repository.ConversationGormRepository
	queues        *repository.QueueGormRepository
	users         *repository.UserGormRepository
	messages      *repository.MessageGormRepository
	connRepo      *repository.ConnectionGormRepository

	gateway  *fakeGateway
	notifier *fakeNotifier

	connections  *application.ConnectionService
	resolver     *application.Resolver
	ledger       *application.Ledger
	assignment   *application.AssignmentEngine
	inbound      *application.InboundProcessor
	outbound     *application.OutboundSender
	conversation *application.ConversationService
	queueSvc     *application.QueueService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)

	inboundPool := msgworker.NewKeyedPool("inbound", 4, 50)
	assignPool := msgworker.NewKeyedPool("assign", 2, 50)
	inboundPool.Start(context.Background())
	assignPool.Start(context.Background())
	t.Cleanup(func() {
		inboundPool.Stop()
		assignPool.Stop()
	})

	h := &harness{
		contacts:      repository.NewContactGormRepository(db),
		conversations: repository.NewConversationGormRepository(db),
		queues:        repository.NewQueueGormRepository(db),
		users:         repository.NewUserGormRepository(db),
		messages:      repository.NewMessageGormRepository(db),
		connRepo:      repository.NewConnectionGormRepository(db, cipher),
		gateway:       &fakeGateway{},
		notifier:      &fakeNotifier{},
	}

	h.connections = application.NewConnectionService(h.connRepo, h.gateway, "env-token", time.Minute)
	h.resolver = application.NewResolver(h.contacts, h.conversations, h.queues)
	h.ledger = application.NewLedger(h.conversations, h.messages, h.connections, h.gateway, h.notifier)
	h.assignment = application.NewAssignmentEngine(h.conversations, h.queues, h.users, h.notifier, assignPool)
	h.inbound = application.NewInboundProcessor(
		cloudapi.NewNormalizer(),
		repository.NewMemorySeenStore(time.Hour),
		h.resolver, h.ledger, h.assignment, h.notifier, inboundPool,
	)
	h.outbound = application.NewOutboundSender(h.resolver, h.ledger, h.notifier, inboundPool)
	h.conversation = application.NewConversationService(h.conversations, h.contacts, h.queues, h.messages, h.notifier)
	h.queueSvc = application.NewQueueService(h.queues, h.conversations)
	return h
}

func (h *harness) activeConnection(t *testing.T) {
	t.Helper()
	require.NoError(t, h.connRepo.Create(context.Background(), &domain.Connection{
		Name:          "Principal",
		PhoneNumberID: "123456",
		AccessToken:   "token",
		VerifyToken:   "verify",
		IsActive:      true,
	}))
}

func (h *harness) queue(t *testing.T, name string, autoAssign bool, maxConversations int) *domain.Queue {
	t.Helper()
	q := &domain.Queue{Name: name, IsActive: true, AutoAssign: autoAssign, MaxConversations: maxConversations}
	require.NoError(t, h.queues.Create(context.Background(), q))
	return q
}

func (h *harness) agent(t *testing.T, name string, queueID string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{Name: name, Email: name + "@crm.local", Role: domain.RoleAgent, IsActive: true}
	require.NoError(t, h.users.Create(ctx, u))
	if queueID != "" {
		_, err := h.queues.AddUser(ctx, queueID, u.ID)
		require.NoError(t, err)
		// membership order is by created_at
		time.Sleep(2 * time.Millisecond)
	}
	return u
}

func (h *harness) openConversation(t *testing.T, phone string, queueID *string) *domain.Conversation {
	t.Helper()
	ctx := context.Background()
	contact := &domain.Contact{Phone: phone, Name: "Cliente " + phone}
	require.NoError(t, h.contacts.Create(ctx, contact))
	conv := &domain.Conversation{ContactID: contact.ID, QueueID: queueID}
	require.NoError(t, h.conversations.Create(ctx, conv))
	time.Sleep(2 * time.Millisecond)
	return conv
}

func textWebhook(from, name, wamid, body string) []byte {
	return []byte(fmt.Sprintf(`{
		"object":"whatsapp_business_account",
		"entry":[{"id":"WABA","changes":[{"field":"messages","value":{
			"messaging_product":"whatsapp",
			"metadata":{"display_phone_number":"5511000000000","phone_number_id":"123456"},
			"contacts":[{"profile":{"name":%q},"wa_id":%q}],
			"messages":[{"from":%q,"id":%q,"timestamp":"1700000000","type":"text","text":{"body":%q}}]
		}}]}]}`, name, from, from, wamid, body))
}

func statusWebhook(wamid, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"object":"whatsapp_business_account",
		"entry":[{"id":"WABA","changes":[{"field":"messages","value":{
			"messaging_product":"whatsapp",
			"statuses":[{"id":%q,"status":%q,"timestamp":"1700000100","recipient_id":"5511999999999"}]
		}}]}]}`, wamid, status))
}
