package repository

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemorySeenStore implementa SeenStore en memoria con expiración por TTL.
type MemorySeenStore struct {
	cache *cache.Cache
}

func NewMemorySeenStore(ttl time.Duration) *MemorySeenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemorySeenStore{cache: cache.New(ttl, ttl/2)}
}

// MarkSeen retorna true solo la primera vez que se observa la clave.
func (s *MemorySeenStore) MarkSeen(_ context.Context, key string) (bool, error) {
	// Add falla si la clave ya existe y no expiró
	if err := s.cache.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemorySeenStore) Forget(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
