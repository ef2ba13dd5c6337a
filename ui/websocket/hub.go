package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotAuthenticated  = errors.New("session is not authenticated")
	ErrConversationEmpty = errors.New("conversationId is required")
)

// Transport is a single client connection. Send must be safe for concurrent use.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// TokenValidator checks the JWT a session presents in its auth frame.
type TokenValidator interface {
	ValidateToken(token string) (*security.Claims, error)
}

type Config struct {
	PingInterval  time.Duration
	SweepInterval time.Duration
	IdleTimeout   time.Duration
	// RequireAuth rejects room joins from sessions that have not authenticated.
	RequireAuth bool
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	return c
}

type session struct {
	id        string
	transport Transport

	mu       sync.Mutex
	userID   string
	role     string
	rooms    map[string]struct{}
	lastSeen time.Time
}

func (s *session) inRoom(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[conversationID]
	return ok
}

func (s *session) user() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Hub maps sessions to the conversation rooms they watch and fans events out
// to them. It implements domain.Notifier.
type Hub struct {
	cfg    Config
	tokens TokenValidator
	typing domain.TypingStore
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	order    []*session

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ domain.Notifier = (*Hub)(nil)

// NewHub builds a hub. typing may be nil.
func NewHub(cfg Config, tokens TokenValidator, typing domain.TypingStore) *Hub {
	return &Hub{
		cfg:      cfg.withDefaults(),
		tokens:   tokens,
		typing:   typing,
		now:      time.Now,
		sessions: make(map[string]*session),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the ping and liveness sweep loops.
func (h *Hub) Start() {
	h.wg.Add(2)
	go h.loop(h.cfg.PingInterval, h.PingAll)
	go h.loop(h.cfg.SweepInterval, func() { h.Sweep() })
	logrus.Infof("[HUB] Started (ping %s, sweep %s, idle timeout %s)", h.cfg.PingInterval, h.cfg.SweepInterval, h.cfg.IdleTimeout)
}

func (h *Hub) loop(every time.Duration, fn func()) {
	defer h.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Shutdown stops the loops and closes every session.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.wg.Wait()

		h.mu.Lock()
		sessions := h.order
		h.sessions = make(map[string]*session)
		h.order = nil
		h.mu.Unlock()

		for _, s := range sessions {
			_ = s.transport.Close()
		}
		logrus.Infof("[HUB] Shut down, closed %d session(s)", len(sessions))
	})
}

// Connect registers a transport and greets it with its session id.
func (h *Hub) Connect(t Transport) string {
	s := &session{
		id:        uuid.New().String(),
		transport: t,
		rooms:     make(map[string]struct{}),
		lastSeen:  h.now(),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	h.order = append(h.order, s)
	h.mu.Unlock()

	logrus.Debugf("[HUB] Session %s connected", s.id)
	h.reply(s, serverConnected, map[string]any{"sessionId": s.id})
	return s.id
}

// Disconnect removes the session. Calling it twice is harmless.
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok {
		h.removeLocked(s)
	}
	h.mu.Unlock()

	if ok {
		_ = s.transport.Close()
		logrus.Debugf("[HUB] Session %s disconnected", sessionID)
	}
}

func (h *Hub) removeLocked(s *session) {
	delete(h.sessions, s.id)
	for i, o := range h.order {
		if o == s {
			h.order = append(h.order[:i:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Hub) session(sessionID string) (*session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (h *Hub) snapshot() []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session, len(h.order))
	copy(out, h.order)
	return out
}

// SessionCount reports live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleMessage dispatches one client frame. Any frame counts as liveness.
func (h *Hub) HandleMessage(ctx context.Context, sessionID string, raw []byte) {
	s, err := h.session(sessionID)
	if err != nil {
		return
	}
	s.touch(h.now())

	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.replyError(s, "Invalid message format")
		return
	}

	switch env.Type {
	case clientAuth:
		var d authData
		if err := decodeData(env.Data, &d); err != nil {
			h.replyError(s, "Invalid message format")
			return
		}
		_ = h.Authenticate(sessionID, d.Token)
	case clientPing:
		h.reply(s, serverPong, nil)
	case clientPong:
		// liveness already recorded
	case clientJoinConversation, clientLeaveConversation:
		var d roomData
		if err := decodeData(env.Data, &d); err != nil {
			h.replyError(s, "Invalid message format")
			return
		}
		if env.Type == clientJoinConversation {
			err = h.JoinRoom(sessionID, d.ConversationID)
		} else {
			err = h.LeaveRoom(sessionID, d.ConversationID)
		}
		if err != nil {
			h.replyError(s, err.Error())
		}
	case clientTyping:
		var d typingData
		if err := decodeData(env.Data, &d); err != nil {
			h.replyError(s, "Invalid message format")
			return
		}
		if err := h.RelayTyping(ctx, sessionID, d.ConversationID, d.IsTyping); err != nil {
			h.replyError(s, err.Error())
		}
	case clientMessageRead:
		var d readData
		if err := decodeData(env.Data, &d); err != nil {
			h.replyError(s, "Invalid message format")
			return
		}
		if err := h.RelayReadReceipt(sessionID, d.ConversationID, d.MessageID); err != nil {
			h.replyError(s, err.Error())
		}
	default:
		h.replyError(s, fmt.Sprintf("Unknown message type: %s", env.Type))
	}
}

// Authenticate binds the token's user to the session.
func (h *Hub) Authenticate(sessionID, token string) error {
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}
	if token == "" {
		h.reply(s, serverAuthError, map[string]any{"message": "Token is required"})
		return security.ErrInvalidToken
	}
	if h.tokens == nil {
		h.reply(s, serverAuthError, map[string]any{"message": "Authentication is not configured"})
		return security.ErrInvalidToken
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.reply(s, serverAuthError, map[string]any{"message": "Invalid token"})
		return err
	}

	s.mu.Lock()
	s.userID = claims.UserID
	s.role = claims.Role
	s.mu.Unlock()

	logrus.Debugf("[HUB] Session %s authenticated as %s", sessionID, claims.UserID)
	h.reply(s, serverAuthSuccess, map[string]any{"userId": claims.UserID, "role": claims.Role})
	return nil
}

func (h *Hub) JoinRoom(sessionID, conversationID string) error {
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}
	if conversationID == "" {
		return ErrConversationEmpty
	}
	if h.cfg.RequireAuth && s.user() == "" {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	s.rooms[conversationID] = struct{}{}
	userID := s.userID
	s.mu.Unlock()

	h.reply(s, serverJoinedConversation, map[string]any{"conversationId": conversationID})
	h.fanOut(conversationID, serverUserJoined, map[string]any{
		"conversationId": conversationID,
		"userId":         userID,
	}, sessionID)
	return nil
}

func (h *Hub) LeaveRoom(sessionID, conversationID string) error {
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}
	if conversationID == "" {
		return ErrConversationEmpty
	}

	s.mu.Lock()
	delete(s.rooms, conversationID)
	userID := s.userID
	s.mu.Unlock()

	h.reply(s, serverLeftConversation, map[string]any{"conversationId": conversationID})
	h.fanOut(conversationID, serverUserLeft, map[string]any{
		"conversationId": conversationID,
		"userId":         userID,
	}, sessionID)
	return nil
}

// Broadcast sends event to every session in the conversation room.
func (h *Hub) Broadcast(conversationID string, event domain.Event) {
	h.fanOut(conversationID, string(event.Type), event.Payload, "")
}

// BroadcastAll sends event to every session regardless of rooms.
func (h *Hub) BroadcastAll(event domain.Event) {
	data, err := encodeFrame(string(event.Type), event.Payload, h.now())
	if err != nil {
		logrus.WithError(err).Errorf("[HUB] Failed to encode %s", event.Type)
		return
	}
	h.deliver(h.snapshot(), data)
}

// RelayTyping tells the rest of the room who is typing and records the state.
func (h *Hub) RelayTyping(ctx context.Context, sessionID, conversationID string, isTyping bool) error {
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}
	if conversationID == "" {
		return ErrConversationEmpty
	}
	userID := s.user()

	if h.typing != nil && userID != "" {
		if err := h.typing.Update(ctx, conversationID, userID, isTyping); err != nil {
			logrus.WithError(err).Warnf("[HUB] Failed to record typing state for %s", conversationID)
		}
	}

	h.fanOut(conversationID, serverTyping, map[string]any{
		"conversationId": conversationID,
		"userId":         userID,
		"isTyping":       isTyping,
	}, sessionID)
	return nil
}

func (h *Hub) RelayReadReceipt(sessionID, conversationID, messageID string) error {
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}
	if conversationID == "" || messageID == "" {
		return errors.New("conversationId and messageId are required")
	}

	h.fanOut(conversationID, serverMessageRead, map[string]any{
		"conversationId": conversationID,
		"messageId":      messageID,
		"userId":         s.user(),
	}, sessionID)
	return nil
}

// PingAll sends a server ping to every session.
func (h *Hub) PingAll() {
	data, err := encodeFrame(serverPing, nil, h.now())
	if err != nil {
		return
	}
	h.deliver(h.snapshot(), data)
}

// Sweep closes sessions idle for longer than the idle timeout and returns how many.
func (h *Hub) Sweep() int {
	cutoff := h.now().Add(-h.cfg.IdleTimeout)

	var stale []*session
	h.mu.Lock()
	for _, s := range h.order {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		h.removeLocked(s)
	}
	h.mu.Unlock()

	for _, s := range stale {
		_ = s.transport.Close()
		logrus.Infof("[HUB] Removed inactive session %s", s.id)
	}
	return len(stale)
}

func (h *Hub) fanOut(conversationID, frameType string, payload map[string]any, exclude string) {
	data, err := encodeFrame(frameType, payload, h.now())
	if err != nil {
		logrus.WithError(err).Errorf("[HUB] Failed to encode %s", frameType)
		return
	}

	var targets []*session
	for _, s := range h.snapshot() {
		if s.id != exclude && s.inRoom(conversationID) {
			targets = append(targets, s)
		}
	}
	h.deliver(targets, data)
}

// deliver writes in order and drops sessions whose transport fails.
func (h *Hub) deliver(targets []*session, data []byte) {
	var failed []*session
	for _, s := range targets {
		if err := s.transport.Send(data); err != nil {
			logrus.WithError(err).Debugf("[HUB] Write to session %s failed", s.id)
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		h.Disconnect(s.id)
	}
}

func (h *Hub) reply(s *session, frameType string, payload map[string]any) {
	h.deliver([]*session{s}, mustFrame(frameType, payload, h.now()))
}

func (h *Hub) replyError(s *session, message string) {
	h.reply(s, serverError, map[string]any{"message": message})
}

func mustFrame(frameType string, payload map[string]any, now time.Time) []byte {
	data, err := encodeFrame(frameType, payload, now)
	if err != nil {
		data, _ = encodeFrame(serverError, map[string]any{"message": "encode failure"}, now)
	}
	return data
}
