package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"

	"docflow/model"
	"docflow/persistence"
	"docflow/util"
)

const WORKFLOW_DEF string = "WF_DEF"
const RULE_DEF string = "RULE_DEF"
const JOB_DEF string = "JOB_DEF"

var _ persistence.MetadataStorage = new(redisMetadataStorage)

// redisMetadataStorage keeps each definition type in one hash keyed by
// id, so listing is a single HGETALL.
type redisMetadataStorage struct {
	baseDao
	workflowEncDec util.EncoderDecoder[model.Workflow]
	ruleEncDec     util.EncoderDecoder[model.Rule]
	jobEncDec      util.EncoderDecoder[model.ScheduledJob]
}

func NewRedisMetadataStorage(conf Config) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:        *newBaseDao(conf),
		workflowEncDec: util.NewJsonEncoderDecoder[model.Workflow](),
		ruleEncDec:     util.NewJsonEncoderDecoder[model.Rule](),
		jobEncDec:      util.NewJsonEncoderDecoder[model.ScheduledJob](),
	}
}

func (s *redisMetadataStorage) SaveWorkflow(wf model.Workflow) error {
	data, err := s.workflowEncDec.Encode(wf)
	if err != nil {
		return err
	}
	return s.redisClient.HSet(context.Background(), s.getNamespaceKey(WORKFLOW_DEF), wf.Id, data).Err()
}

func (s *redisMetadataStorage) DeleteWorkflow(id string) error {
	return s.redisClient.HDel(context.Background(), s.getNamespaceKey(WORKFLOW_DEF), id).Err()
}

func (s *redisMetadataStorage) GetWorkflow(id string) (*model.Workflow, error) {
	val, err := s.redisClient.HGet(context.Background(), s.getNamespaceKey(WORKFLOW_DEF), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.workflowEncDec.Decode([]byte(val))
}

func (s *redisMetadataStorage) ListWorkflows() ([]model.Workflow, error) {
	vals, err := s.redisClient.HGetAll(context.Background(), s.getNamespaceKey(WORKFLOW_DEF)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.Workflow, 0, len(vals))
	for _, val := range vals {
		wf, err := s.workflowEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, *wf)
	}
	return out, nil
}

func (s *redisMetadataStorage) SaveRule(rule model.Rule) error {
	data, err := s.ruleEncDec.Encode(rule)
	if err != nil {
		return err
	}
	return s.redisClient.HSet(context.Background(), s.getNamespaceKey(RULE_DEF), rule.Id, data).Err()
}

func (s *redisMetadataStorage) DeleteRule(id string) error {
	return s.redisClient.HDel(context.Background(), s.getNamespaceKey(RULE_DEF), id).Err()
}

func (s *redisMetadataStorage) GetRule(id string) (*model.Rule, error) {
	val, err := s.redisClient.HGet(context.Background(), s.getNamespaceKey(RULE_DEF), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.ruleEncDec.Decode([]byte(val))
}

func (s *redisMetadataStorage) ListRules() ([]model.Rule, error) {
	vals, err := s.redisClient.HGetAll(context.Background(), s.getNamespaceKey(RULE_DEF)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.Rule, 0, len(vals))
	for _, val := range vals {
		rule, err := s.ruleEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, nil
}

func (s *redisMetadataStorage) SaveJob(job model.ScheduledJob) error {
	data, err := s.jobEncDec.Encode(job)
	if err != nil {
		return err
	}
	return s.redisClient.HSet(context.Background(), s.getNamespaceKey(JOB_DEF), job.Id, data).Err()
}

func (s *redisMetadataStorage) DeleteJob(id string) error {
	return s.redisClient.HDel(context.Background(), s.getNamespaceKey(JOB_DEF), id).Err()
}

func (s *redisMetadataStorage) GetJob(id string) (*model.ScheduledJob, error) {
	val, err := s.redisClient.HGet(context.Background(), s.getNamespaceKey(JOB_DEF), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.jobEncDec.Decode([]byte(val))
}

func (s *redisMetadataStorage) ListJobs() ([]model.ScheduledJob, error) {
	vals, err := s.redisClient.HGetAll(context.Background(), s.getNamespaceKey(JOB_DEF)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.ScheduledJob, 0, len(vals))
	for _, val := range vals {
		job, err := s.jobEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, nil
}
