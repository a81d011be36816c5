package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"docflow/persistence"
)

var _ persistence.DedupStore = new(inMemoryDedupStore)

type inMemoryDedupStore struct {
	entries *cache.Cache
}

func NewInMemoryDedupStore() *inMemoryDedupStore {
	return &inMemoryDedupStore{
		entries: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// PutIfAbsent relies on cache.Add, which fails when the key is already
// present and unexpired.
func (s *inMemoryDedupStore) PutIfAbsent(kind string, key string, retention time.Duration) (bool, error) {
	err := s.entries.Add(kind+":"+key, struct{}{}, retention)
	return err == nil, nil
}
