package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/valkey"
)

// ValkeySeenStore implements SeenStore with SET NX so every instance sharing
// the same Valkey sees a webhook event at most once.
type ValkeySeenStore struct {
	client *valkey.Client
	ttl    time.Duration
}

func NewValkeySeenStore(client *valkey.Client, ttl time.Duration) *ValkeySeenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ValkeySeenStore{client: client, ttl: ttl}
}

func (s *ValkeySeenStore) MarkSeen(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, s.client.Key("seen", key), "1", s.ttl)
}

func (s *ValkeySeenStore) Forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.client.Key("seen", key))
}
