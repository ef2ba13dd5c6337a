package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
)

// TypingExpiration descarta estados de escritura que no se renovaron.
const TypingExpiration = 7 * time.Second

// MemoryTypingStore implementa TypingStore en memoria.
type MemoryTypingStore struct {
	mu    sync.Mutex
	store map[string]map[string]time.Time // conversationID -> userID -> updatedAt
	now   func() time.Time
}

func NewMemoryTypingStore() *MemoryTypingStore {
	return &MemoryTypingStore{
		store: make(map[string]map[string]time.Time),
		now:   time.Now,
	}
}

func (m *MemoryTypingStore) Update(_ context.Context, conversationID, userID string, isTyping bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.store[conversationID]
	if !isTyping {
		if users != nil {
			delete(users, userID)
			if len(users) == 0 {
				delete(m.store, conversationID)
			}
		}
		return nil
	}

	if users == nil {
		users = make(map[string]time.Time)
		m.store[conversationID] = users
	}
	users[userID] = m.now()
	return nil
}

func (m *MemoryTypingStore) List(_ context.Context, conversationID string) ([]domain.TypingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var active []domain.TypingState
	for userID, at := range m.store[conversationID] {
		if now.Sub(at) > TypingExpiration {
			delete(m.store[conversationID], userID)
			continue
		}
		active = append(active, domain.TypingState{
			ConversationID: conversationID,
			UserID:         userID,
			UpdatedAt:      at,
		})
	}
	sort.Slice(active, func(i, j int) bool { return active[i].UserID < active[j].UserID })
	return active, nil
}
