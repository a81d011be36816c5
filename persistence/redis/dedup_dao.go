package redis

import (
	"context"
	"time"

	"docflow/persistence"
)

const DEDUP_KEY string = "DEDUP"

var _ persistence.DedupStore = new(redisDedupStore)

type redisDedupStore struct {
	baseDao
}

func NewRedisDedupStore(conf Config) *redisDedupStore {
	return &redisDedupStore{baseDao: *newBaseDao(conf)}
}

// PutIfAbsent is a SETNX with the retention window as TTL, so a key
// seen on any instance blocks duplicates everywhere.
func (s *redisDedupStore) PutIfAbsent(kind string, key string, retention time.Duration) (bool, error) {
	ok, err := s.redisClient.SetNX(context.Background(), s.getNamespaceKey(DEDUP_KEY, kind, key), 1, retention).Result()
	if err != nil {
		return false, persistence.StorageLayerError{Message: err.Error()}
	}
	return ok, nil
}
