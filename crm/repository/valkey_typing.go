package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/infrastructure/valkey"
)

const typingTTL = 20 * time.Second

// ValkeyTypingStore implements domain.TypingStore using Valkey.
// Keys expire on their own so stale typing states need no sweeper.
type ValkeyTypingStore struct {
	client *valkey.Client
}

func NewValkeyTypingStore(client *valkey.Client) *ValkeyTypingStore {
	return &ValkeyTypingStore{client: client}
}

func (s *ValkeyTypingStore) key(conversationID, userID string) string {
	return s.client.Key("typing", conversationID, userID)
}

func (s *ValkeyTypingStore) Update(ctx context.Context, conversationID, userID string, isTyping bool) error {
	if !isTyping {
		return s.client.Del(ctx, s.key(conversationID, userID))
	}

	data, err := json.Marshal(domain.TypingState{
		ConversationID: conversationID,
		UserID:         userID,
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.client.SetEX(ctx, s.key(conversationID, userID), string(data), typingTTL)
}

// List returns the non-expired typing states of one conversation, oldest first.
func (s *ValkeyTypingStore) List(ctx context.Context, conversationID string) ([]domain.TypingState, error) {
	values, err := s.client.ScanValues(ctx, s.client.Key("typing", conversationID, "*"))
	if err != nil {
		return nil, err
	}

	states := make([]domain.TypingState, 0, len(values))
	for _, val := range values {
		var st domain.TypingState
		if err := json.Unmarshal([]byte(val), &st); err == nil {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UpdatedAt.Before(states[j].UpdatedAt) })
	return states, nil
}
