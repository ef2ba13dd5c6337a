package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/crm/repository"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames []map[string]any
	fail   bool
	closed bool
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errors.New("broken pipe")
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr["type"].(string))
	}
	return out
}

func (f *fakeTransport) last() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func newTestHub(t *testing.T) (*Hub, *security.TokenIssuer) {
	t.Helper()
	issuer := security.NewTokenIssuer("hub-secret", time.Hour)
	hub := NewHub(Config{IdleTimeout: time.Minute}, issuer, repository.NewMemoryTypingStore())
	t.Cleanup(hub.Shutdown)
	return hub, issuer
}

func TestHub_ConnectSendsSessionID(t *testing.T) {
	hub, _ := newTestHub(t)
	tr := &fakeTransport{}

	id := hub.Connect(tr)
	frame := tr.last()
	require.NotNil(t, frame)
	assert.Equal(t, "connected", frame["type"])
	assert.Equal(t, id, frame["sessionId"])

	_, err := time.Parse(time.RFC3339, frame["timestamp"].(string))
	assert.NoError(t, err)
	assert.Equal(t, 1, hub.SessionCount())
}

func TestHub_Authenticate(t *testing.T) {
	hub, issuer := newTestHub(t)
	tr := &fakeTransport{}
	id := hub.Connect(tr)

	token, _, err := issuer.GenerateToken("user-1", "AGENT")
	require.NoError(t, err)

	hub.HandleMessage(context.Background(), id, []byte(`{"type":"auth","data":{"token":"`+token+`"}}`))
	frame := tr.last()
	assert.Equal(t, "auth_success", frame["type"])
	assert.Equal(t, "user-1", frame["userId"])
	assert.Equal(t, "AGENT", frame["role"])

	hub.HandleMessage(context.Background(), id, []byte(`{"type":"auth","data":{"token":"garbage"}}`))
	assert.Equal(t, "auth_error", tr.last()["type"])
}

func TestHub_BroadcastOnlyReachesRoomInOrder(t *testing.T) {
	hub, _ := newTestHub(t)
	a, b, outsider := &fakeTransport{}, &fakeTransport{}, &fakeTransport{}
	idA := hub.Connect(a)
	idB := hub.Connect(b)
	hub.Connect(outsider)

	require.NoError(t, hub.JoinRoom(idA, "conv-1"))
	require.NoError(t, hub.JoinRoom(idB, "conv-1"))

	// A is told that B joined
	assert.Equal(t, "user_joined", a.last()["type"])

	hub.Broadcast("conv-1", domain.Event{
		Type:    domain.EventNewMessage,
		Payload: map[string]any{"conversationId": "conv-1", "message": map[string]any{"content": "Olá"}},
	})

	assert.Equal(t, "new_message", a.last()["type"])
	assert.Equal(t, "new_message", b.last()["type"])
	assert.NotContains(t, outsider.types(), "new_message")

	require.NoError(t, hub.LeaveRoom(idB, "conv-1"))
	hub.Broadcast("conv-1", domain.Event{Type: domain.EventConversationUpdated, Payload: map[string]any{"conversationId": "conv-1"}})
	assert.Equal(t, "conversation_updated", a.last()["type"])
	assert.Equal(t, "left_conversation", b.last()["type"])
}

func TestHub_FailedWriteRemovesSession(t *testing.T) {
	hub, _ := newTestHub(t)
	good, broken := &fakeTransport{}, &fakeTransport{}
	idGood := hub.Connect(good)
	idBroken := hub.Connect(broken)
	require.NoError(t, hub.JoinRoom(idGood, "conv-1"))
	require.NoError(t, hub.JoinRoom(idBroken, "conv-1"))

	broken.mu.Lock()
	broken.fail = true
	broken.mu.Unlock()

	hub.Broadcast("conv-1", domain.Event{Type: domain.EventNewMessage, Payload: map[string]any{"conversationId": "conv-1"}})
	assert.Equal(t, 1, hub.SessionCount())
	assert.Equal(t, "new_message", good.last()["type"])
	assert.True(t, broken.closed)
}

func TestHub_TypingExcludesSenderAndIsRecorded(t *testing.T) {
	issuer := security.NewTokenIssuer("hub-secret", time.Hour)
	typing := repository.NewMemoryTypingStore()
	hub := NewHub(Config{}, issuer, typing)
	t.Cleanup(hub.Shutdown)

	sender, watcher := &fakeTransport{}, &fakeTransport{}
	idSender := hub.Connect(sender)
	idWatcher := hub.Connect(watcher)

	token, _, err := issuer.GenerateToken("agent-7", "AGENT")
	require.NoError(t, err)
	require.NoError(t, hub.Authenticate(idSender, token))
	require.NoError(t, hub.JoinRoom(idSender, "conv-9"))
	require.NoError(t, hub.JoinRoom(idWatcher, "conv-9"))

	hub.HandleMessage(context.Background(), idSender, []byte(`{"type":"typing","data":{"conversationId":"conv-9","isTyping":true}}`))

	frame := watcher.last()
	assert.Equal(t, "typing", frame["type"])
	assert.Equal(t, "agent-7", frame["userId"])
	assert.Equal(t, true, frame["isTyping"])
	assert.NotContains(t, sender.types(), "typing")

	states, err := typing.List(context.Background(), "conv-9")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "agent-7", states[0].UserID)
}

func TestHub_ReadReceipt(t *testing.T) {
	hub, _ := newTestHub(t)
	reader, other := &fakeTransport{}, &fakeTransport{}
	idReader := hub.Connect(reader)
	idOther := hub.Connect(other)
	require.NoError(t, hub.JoinRoom(idReader, "conv-2"))
	require.NoError(t, hub.JoinRoom(idOther, "conv-2"))

	hub.HandleMessage(context.Background(), idReader, []byte(`{"type":"message_read","data":{"conversationId":"conv-2","messageId":"m-1"}}`))
	assert.Equal(t, "message_read", other.last()["type"])
	assert.Equal(t, "m-1", other.last()["messageId"])

	hub.HandleMessage(context.Background(), idReader, []byte(`{"type":"message_read","data":{"conversationId":"conv-2"}}`))
	assert.Equal(t, "error", reader.last()["type"])
}

func TestHub_PingPongAndProtocolErrors(t *testing.T) {
	hub, _ := newTestHub(t)
	tr := &fakeTransport{}
	id := hub.Connect(tr)

	hub.HandleMessage(context.Background(), id, []byte(`{"type":"ping"}`))
	assert.Equal(t, "pong", tr.last()["type"])

	hub.HandleMessage(context.Background(), id, []byte(`{nope`))
	assert.Equal(t, "error", tr.last()["type"])
	assert.Equal(t, "Invalid message format", tr.last()["message"])

	hub.HandleMessage(context.Background(), id, []byte(`{"type":"dance"}`))
	assert.Equal(t, "Unknown message type: dance", tr.last()["message"])

	hub.HandleMessage(context.Background(), id, []byte(`{"type":"join_conversation","data":{}}`))
	assert.Equal(t, "error", tr.last()["type"])

	hub.PingAll()
	assert.Equal(t, "ping", tr.last()["type"])
}

func TestHub_SweepClosesIdleSessions(t *testing.T) {
	hub, _ := newTestHub(t)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return clock }

	idle, active := &fakeTransport{}, &fakeTransport{}
	hub.Connect(idle)
	idActive := hub.Connect(active)

	clock = clock.Add(45 * time.Second)
	hub.HandleMessage(context.Background(), idActive, []byte(`{"type":"pong"}`))

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 1, hub.Sweep())
	assert.True(t, idle.closed)
	assert.False(t, active.closed)
	assert.Equal(t, 1, hub.SessionCount())
}

func TestHub_RequireAuthForJoin(t *testing.T) {
	hub := NewHub(Config{RequireAuth: true}, nil, nil)
	t.Cleanup(hub.Shutdown)

	id := hub.Connect(&fakeTransport{})
	assert.ErrorIs(t, hub.JoinRoom(id, "conv-1"), ErrNotAuthenticated)
}

func TestHub_BroadcastAllAndShutdown(t *testing.T) {
	hub := NewHub(Config{}, nil, nil)
	a, b := &fakeTransport{}, &fakeTransport{}
	hub.Connect(a)
	hub.Connect(b)

	hub.BroadcastAll(domain.Event{Type: domain.EventUserStatusChanged, Payload: map[string]any{"userId": "u1", "isActive": false}})
	assert.Equal(t, "user_status_changed", a.last()["type"])
	assert.Equal(t, "user_status_changed", b.last()["type"])

	hub.Shutdown()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Zero(t, hub.SessionCount())
}
