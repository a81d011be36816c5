package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/go-redis/redis/v9"

	"docflow/model"
	"docflow/persistence"
	"docflow/util"
)

const RUN_KEY string = "RUN"
const RUN_HISTORY string = "RUN_HISTORY"

// archived run records expire on their own; the history index lists
// are trimmed to the configured cap.
const runRetention = 7 * 24 * time.Hour

var _ persistence.RunStorage = new(redisRunStorage)

type redisRunStorage struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.Run]
	historyLimit   int64
}

func NewRedisRunStorage(conf Config, historyLimit int) *redisRunStorage {
	return &redisRunStorage{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.Run](),
		historyLimit:   int64(historyLimit),
	}
}

func (s *redisRunStorage) Save(run *model.Run) error {
	data, err := s.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	err = s.redisClient.Set(context.Background(), s.getNamespaceKey(RUN_KEY, run.Id), data, 0).Err()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisRunStorage) Get(id string) (*model.Run, error) {
	val, err := s.redisClient.Get(context.Background(), s.getNamespaceKey(RUN_KEY, id)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.encoderDecoder.Decode([]byte(val))
}

func (s *redisRunStorage) Archive(run *model.Run) error {
	data, err := s.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	ctx := context.Background()
	pipe := s.redisClient.Pipeline()
	pipe.Set(ctx, s.getNamespaceKey(RUN_KEY, run.Id), data, runRetention)
	for _, listKey := range []string{s.getNamespaceKey(RUN_HISTORY), s.getNamespaceKey(RUN_HISTORY, run.WorkflowId)} {
		pipe.LPush(ctx, listKey, run.Id)
		pipe.LTrim(ctx, listKey, 0, s.historyLimit-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisRunStorage) List(workflowId string, limit int) ([]model.Run, error) {
	listKey := s.getNamespaceKey(RUN_HISTORY)
	if len(workflowId) > 0 {
		listKey = s.getNamespaceKey(RUN_HISTORY, workflowId)
	}
	if limit <= 0 || int64(limit) > s.historyLimit {
		limit = int(s.historyLimit)
	}
	ctx := context.Background()
	ids, err := s.redisClient.LRange(ctx, listKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return []model.Run{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.getNamespaceKey(RUN_KEY, id)
	}
	vals, err := s.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.Run, 0, len(vals))
	for _, val := range vals {
		str, ok := val.(string)
		if !ok {
			// expired entry still referenced by the index
			continue
		}
		run, err := s.encoderDecoder.Decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, nil
}
