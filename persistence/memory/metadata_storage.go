// Package memory provides storage implementations backed by process
// memory, used for single-node deployments and tests.
package memory

import (
	"sync"

	"docflow/model"
	"docflow/persistence"
)

var _ persistence.MetadataStorage = new(inMemoryMetadataStorage)

type inMemoryMetadataStorage struct {
	mu        sync.RWMutex
	workflows map[string]model.Workflow
	rules     map[string]model.Rule
	jobs      map[string]model.ScheduledJob
}

func NewInMemoryMetadataStorage() *inMemoryMetadataStorage {
	return &inMemoryMetadataStorage{
		workflows: make(map[string]model.Workflow),
		rules:     make(map[string]model.Rule),
		jobs:      make(map[string]model.ScheduledJob),
	}
}

func (s *inMemoryMetadataStorage) SaveWorkflow(wf model.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.Id] = wf
	return nil
}

func (s *inMemoryMetadataStorage) DeleteWorkflow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, id)
	return nil
}

func (s *inMemoryMetadataStorage) GetWorkflow(id string) (*model.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, nil
	}
	return &wf, nil
}

func (s *inMemoryMetadataStorage) ListWorkflows() ([]model.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	return out, nil
}

func (s *inMemoryMetadataStorage) SaveRule(rule model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.Id] = rule
	return nil
}

func (s *inMemoryMetadataStorage) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *inMemoryMetadataStorage) GetRule(id string) (*model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (s *inMemoryMetadataStorage) ListRules() ([]model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, rule)
	}
	return out, nil
}

func (s *inMemoryMetadataStorage) SaveJob(job model.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Id] = job
	return nil
}

func (s *inMemoryMetadataStorage) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *inMemoryMetadataStorage) GetJob(id string) (*model.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *inMemoryMetadataStorage) ListJobs() ([]model.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out, nil
}
