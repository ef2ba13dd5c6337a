package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/core/database"
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/crm/repository"
	"github.com/AzielCF/az-crm/infrastructure/whatsapp/cloudapi"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/ui/rest"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	sendErr error
	sent    []string
}

func (g *stubGateway) ForConnection(*domain.Connection) domain.Gateway { return g }

func (g *stubGateway) SendText(_ context.Context, to, body string) (domain.SendResult, error) {
	if g.sendErr != nil {
		return domain.SendResult{}, g.sendErr
	}
	g.sent = append(g.sent, to+":"+body)
	id := fmt.Sprintf("wamid.rest.%d", len(g.sent))
	return domain.SendResult{
		ExternalID: id,
		Raw: map[string]any{
			"messaging_product": "whatsapp",
			"messages":          []any{map[string]any{"id": id}},
		},
	}, nil
}

func (g *stubGateway) SendMedia(_ context.Context, msg domain.MediaMessage) (domain.SendResult, error) {
	return g.SendText(context.Background(), msg.To, msg.URL)
}

func (g *stubGateway) MarkAsRead(context.Context, string) error { return nil }

func (g *stubGateway) GetMediaURL(_ context.Context, mediaID string) (string, error) {
	return "https://lookaside.example.com/" + mediaID, nil
}

func (g *stubGateway) DownloadMedia(context.Context, string) ([]byte, string, error) {
	return []byte("binary"), "image/png", nil
}

func (g *stubGateway) Ping(context.Context) error { return g.sendErr }

type testServer struct {
	app      *fiber.App
	gateway  *stubGateway
	connRepo *repository.ConnectionGormRepository
	users    *repository.UserGormRepository
	tokens   *security.TokenIssuer
}

func newTestServer(t *testing.T, requireAuth bool) *testServer {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cipher, err := crypto.NewCipher("rest-secret")
	require.NoError(t, err)

	contacts := repository.NewContactGormRepository(db)
	conversations := repository.NewConversationGormRepository(db)
	queues := repository.NewQueueGormRepository(db)
	users := repository.NewUserGormRepository(db)
	messages := repository.NewMessageGormRepository(db)
	connRepo := repository.NewConnectionGormRepository(db, cipher)

	gateway := &stubGateway{}
	tokens := security.NewTokenIssuer("jwt-secret", time.Hour)

	connections := application.NewConnectionService(connRepo, gateway, "env-token", 0)
	resolver := application.NewResolver(contacts, conversations, queues)
	ledger := application.NewLedger(conversations, messages, connections, gateway, nil)
	assignment := application.NewAssignmentEngine(conversations, queues, users, nil, nil)
	inbound := application.NewInboundProcessor(cloudapi.NewNormalizer(), repository.NewMemorySeenStore(time.Hour), resolver, ledger, assignment, nil, nil)
	outbound := application.NewOutboundSender(resolver, ledger, nil, nil)

	app := fiber.New()
	app.Use(middleware.Recovery())
	rest.InitRestHealth(app, "test", nil)

	api := app.Group("/api")
	api.Use(middleware.Auth(middleware.AuthConfig{
		Tokens:   tokens,
		Required: requireAuth,
		Next:     middleware.PublicPaths("/api", "/whatsapp/webhook", "/auth/login"),
	}))
	rest.InitRestWhatsapp(api, inbound, outbound, connections)
	rest.InitRestConversation(api, application.NewConversationService(conversations, contacts, queues, messages, nil), assignment)
	rest.InitRestMessage(api, ledger)
	rest.InitRestQueue(api, application.NewQueueService(queues, conversations), assignment)
	rest.InitRestContact(api, application.NewContactService(contacts, conversations))
	rest.InitRestUser(api, application.NewUserService(users, nil))
	rest.InitRestAuth(api, application.NewAuthService(users, tokens))
	api.Get("/panic", func(c *fiber.Ctx) error {
		panic(pkgError.ValidationError("bad input"))
	})

	return &testServer{app: app, gateway: gateway, connRepo: connRepo, users: users, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case []byte:
			reader = bytes.NewReader(v)
		default:
			raw, err := json.Marshal(v)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func decodeEnvelope(t *testing.T, raw []byte) utils.ResponseData {
	t.Helper()
	var res utils.ResponseData
	require.NoError(t, json.Unmarshal(raw, &res), string(raw))
	return res
}

func (s *testServer) activeConnection(t *testing.T) {
	t.Helper()
	require.NoError(t, s.connRepo.Create(context.Background(), &domain.Connection{
		Name:          "Principal",
		PhoneNumberID: "123456",
		AccessToken:   "token",
		VerifyToken:   "verify-me",
		IsActive:      true,
	}))
}

func textWebhook(from, wamid, body string) []byte {
	return []byte(fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"WABA","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp",
		"contacts":[{"profile":{"name":"Maria"},"wa_id":%q}],
		"messages":[{"from":%q,"id":%q,"timestamp":"1700000000","type":"text","text":{"body":%q}}]}}]}]}`, from, from, wamid, body))
}

func TestWebhookVerify(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=env-token&hub.challenge=1158201444", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1158201444", string(body))

	resp, _ = s.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// a connection's own token wins over the environment fallback
	s.activeConnection(t)
	resp, _ = s.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=env-token&hub.challenge=1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = s.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "42", string(body))
}

func TestWebhookReceive_CreatesConversation(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.do(t, http.MethodPost, "/api/whatsapp/webhook", textWebhook("5511999999999", "wamid.IN1", "Olá"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, body = s.do(t, http.MethodGet, "/api/conversations?status=waiting", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res struct {
		Results struct {
			Conversations []domain.ConversationSummary `json:"conversations"`
			Pagination    utils.Pagination             `json:"pagination"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	require.Len(t, res.Results.Conversations, 1)
	assert.EqualValues(t, 1, res.Results.Pagination.Total)
	conv := res.Results.Conversations[0]
	assert.Equal(t, domain.StatusWaiting, conv.Status)
	assert.EqualValues(t, 1, conv.UnreadCount)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "Olá", conv.LastMessage.Content)

	resp, body = s.do(t, http.MethodPost, "/api/messages/mark-read", map[string]string{"conversationId": conv.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"count": float64(1)}, decodeEnvelope(t, body).Results)
}

func TestWebhookReceive_InvalidPayload(t *testing.T) {
	s := newTestServer(t, false)

	resp, _ := s.do(t, http.MethodPost, "/api/whatsapp/webhook", []byte(`{not json`))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSendMessage_ToPhone(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.do(t, http.MethodPost, "/api/whatsapp/send-message", map[string]string{"to": "5511988887777", "message": "Oi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND_ERROR", decodeEnvelope(t, body).Code)

	s.activeConnection(t)
	resp, body = s.do(t, http.MethodPost, "/api/whatsapp/send-message", map[string]string{"to": "5511988887777", "message": "Oi"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	results := decodeEnvelope(t, body).Results.(map[string]any)
	persisted := results["message"].(map[string]any)
	assert.NotEmpty(t, persisted["id"])
	assert.Equal(t, persisted["id"], results["messageId"])
	assert.NotEqual(t, "wamid.rest.1", results["messageId"])
	assert.Equal(t, "wamid.rest.1", results["externalId"])
	gateway := results["gateway"].(map[string]any)
	assert.Equal(t, "whatsapp", gateway["messaging_product"])
	assert.Equal(t, true, results["isNew"])
	assert.Equal(t, []string{"5511988887777:Oi"}, s.gateway.sent)

	resp, _ = s.do(t, http.MethodPost, "/api/whatsapp/send-message", map[string]string{"to": "123", "message": "Oi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_GatewayFailureReturnsFailedMessage(t *testing.T) {
	s := newTestServer(t, false)
	s.activeConnection(t)

	_, _ = s.do(t, http.MethodPost, "/api/whatsapp/webhook", textWebhook("5511977776666", "wamid.IN2", "Oi"))
	_, body := s.do(t, http.MethodGet, "/api/conversations", nil)
	var list struct {
		Results struct {
			Conversations []domain.ConversationSummary `json:"conversations"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Results.Conversations, 1)
	convID := list.Results.Conversations[0].ID

	s.gateway.sendErr = &pkgError.GatewayError{Code: 400, Message: "Recipient not allowed"}
	resp, body := s.do(t, http.MethodPost, "/api/messages/send", map[string]string{"conversationId": convID, "content": "Resposta"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	res := decodeEnvelope(t, body)
	assert.Equal(t, "GATEWAY_ERROR", res.Code)
	failed := res.Results.(map[string]any)
	assert.Equal(t, string(domain.MessageFailed), failed["status"])

	resp, body = s.do(t, http.MethodGet, "/api/messages/conversation/"+convID+"?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeEnvelope(t, body).Results.(map[string]any)["pagination"].(map[string]any)
	assert.EqualValues(t, 2, page["total"])
	assert.EqualValues(t, 2, page["pages"])
}

func TestConversationRoutes(t *testing.T) {
	s := newTestServer(t, false)
	_, _ = s.do(t, http.MethodPost, "/api/whatsapp/webhook", textWebhook("5511966665555", "wamid.IN3", "Oi"))

	_, body := s.do(t, http.MethodGet, "/api/conversations/stats/overview", nil)
	stats := decodeEnvelope(t, body).Results.(map[string]any)
	assert.EqualValues(t, 1, stats["waiting"])
	assert.EqualValues(t, 1, stats["total"])

	_, body = s.do(t, http.MethodGet, "/api/conversations", nil)
	var list struct {
		Results struct {
			Conversations []domain.ConversationSummary `json:"conversations"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Results.Conversations, 1)
	convID := list.Results.Conversations[0].ID

	resp, _ := s.do(t, http.MethodPatch, "/api/conversations/"+convID+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPatch, "/api/conversations/"+convID+"/status", map[string]string{"status": "attending"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/users", map[string]any{"name": "Ana", "email": "ana@crm.local"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	userID := decodeEnvelope(t, body).Results.(map[string]any)["id"].(string)

	resp, body = s.do(t, http.MethodPost, "/api/conversations/"+convID+"/assign", map[string]string{"userId": userID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, string(domain.StatusAttending), decodeEnvelope(t, body).Results.(map[string]any)["status"])

	resp, _ = s.do(t, http.MethodPatch, "/api/conversations/"+convID+"/status", map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPatch, "/api/conversations/"+convID+"/status", map[string]string{"status": "attending"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT_ERROR", decodeEnvelope(t, body).Code)

	resp, _ = s.do(t, http.MethodGet, "/api/conversations/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueueRoutes(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.do(t, http.MethodPost, "/api/queues", map[string]any{"name": "Suporte", "autoAssign": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	queue := decodeEnvelope(t, body).Results.(map[string]any)
	queueID := queue["id"].(string)
	assert.Equal(t, "#3B82F6", queue["color"])

	resp, _ = s.do(t, http.MethodPost, "/api/queues", map[string]any{"name": "Suporte"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/queues/"+queueID+"/auto-assign", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 0, decodeEnvelope(t, body).Results.(map[string]any)["assigned"])

	_, _ = s.do(t, http.MethodPost, "/api/whatsapp/webhook", textWebhook("5511955554444", "wamid.IN4", "Oi"))

	resp, body = s.do(t, http.MethodPost, "/api/queues/"+queueID+"/auto-assign", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NO_AVAILABLE_AGENT", decodeEnvelope(t, body).Code)

	_, body = s.do(t, http.MethodPost, "/api/users", map[string]any{"name": "Bia", "email": "bia@crm.local"})
	userID := decodeEnvelope(t, body).Results.(map[string]any)["id"].(string)
	resp, _ = s.do(t, http.MethodPost, "/api/queues/"+queueID+"/users", map[string]string{"userId": userID})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/queues/"+queueID+"/auto-assign", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 1, decodeEnvelope(t, body).Results.(map[string]any)["assigned"])

	resp, body = s.do(t, http.MethodDelete, "/api/queues/"+queueID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "queue has 1 active conversation(s)", decodeEnvelope(t, body).Message)

	resp, _ = s.do(t, http.MethodDelete, "/api/queues/"+queueID+"/users/"+userID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContactRoutes(t *testing.T) {
	s := newTestServer(t, false)
	_, _ = s.do(t, http.MethodPost, "/api/whatsapp/webhook", textWebhook("5511944443333", "wamid.IN5", "Oi"))

	resp, body := s.do(t, http.MethodGet, "/api/contacts?search=maria", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Results struct {
			Contacts []map[string]any `json:"contacts"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Results.Contacts, 1)
	contactID := list.Results.Contacts[0]["id"].(string)

	resp, body = s.do(t, http.MethodPut, "/api/contacts/"+contactID, map[string]any{"name": "Maria Souza", "tags": []string{"vip", "vip"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decodeEnvelope(t, body).Results.(map[string]any)
	assert.Equal(t, "Maria Souza", updated["name"])
	assert.Equal(t, []any{"vip"}, updated["tags"])

	resp, body = s.do(t, http.MethodPatch, "/api/contacts/"+contactID+"/block", map[string]bool{"isBlocked": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Contact blocked", decodeEnvelope(t, body).Message)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.do(t, http.MethodGet, "/api/queues", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_ERROR", decodeEnvelope(t, body).Code)

	// webhook stays public
	resp, _ = s.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=env-token&hub.challenge=7", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, s.users.Create(context.Background(), &domain.User{
		Name: "Admin", Email: "admin@crm.local", Role: domain.RoleAdmin, IsActive: true, PasswordHash: hash,
	}))

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "admin@crm.local", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "admin@crm.local", "password": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	token := decodeEnvelope(t, body).Results.(map[string]any)["token"].(string)

	resp, _ = s.do(t, http.MethodGet, "/api/queues", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/queues", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndRecovery(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "uptime")
	assert.Contains(t, health, "timestamp")

	token, _, err := s.tokens.GenerateToken("u1", "ADMIN")
	require.NoError(t, err)
	resp, body = s.do(t, http.MethodGet, "/api/panic", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, body).Code)
}

func TestWorkerPoolStats(t *testing.T) {
	inbound := msgworker.NewKeyedPool("inbound", 2, 10)
	assign := msgworker.NewKeyedPool("assign", 1, 10)
	inbound.Start(context.Background())
	assign.Start(context.Background())
	t.Cleanup(func() {
		inbound.Stop()
		assign.Stop()
	})

	app := fiber.New()
	rest.InitRestWorkerPool(app, inbound, assign, nil)

	req := httptest.NewRequest(http.MethodGet, "/worker-pools/stats", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope struct {
		Results []msgworker.PoolStats `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.Len(t, envelope.Results, 2)
	assert.Equal(t, "inbound", envelope.Results[0].Name)
	assert.Equal(t, 2, envelope.Results[0].NumWorkers)
	assert.Equal(t, "assign", envelope.Results[1].Name)
	assert.Len(t, envelope.Results[1].WorkerStats, 1)
}
