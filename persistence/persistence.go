// Package persistence defines the storage contracts the engine and
// coordinator run against. Implementations live in the redis and
// memory subpackages and are selected through config.
package persistence

import (
	"fmt"
	"time"

	"docflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// MetadataStorage holds definitions: workflows, rules and scheduled
// jobs. Definitions are small and read-mostly; callers cache them.
type MetadataStorage interface {
	SaveWorkflow(wf model.Workflow) error
	DeleteWorkflow(id string) error
	GetWorkflow(id string) (*model.Workflow, error)
	ListWorkflows() ([]model.Workflow, error)

	SaveRule(rule model.Rule) error
	DeleteRule(id string) error
	GetRule(id string) (*model.Rule, error)
	ListRules() ([]model.Rule, error)

	SaveJob(job model.ScheduledJob) error
	DeleteJob(id string) error
	GetJob(id string) (*model.ScheduledJob, error)
	ListJobs() ([]model.ScheduledJob, error)
}

// RunStorage persists run state. Save keeps the live state current
// during execution; Archive records a terminal run and trims history
// to the configured cap. List returns archived runs, newest first.
type RunStorage interface {
	Save(run *model.Run) error
	Get(id string) (*model.Run, error)
	Archive(run *model.Run) error
	List(workflowId string, limit int) ([]model.Run, error)
}

// DelayQueue parks serialized execution requests until they are due.
// Pop drains every due message and removes it atomically.
type DelayQueue interface {
	Push(queueName string, message []byte) error
	PushWithDelay(queueName string, delay time.Duration, message []byte) error
	Pop(queueName string) ([]string, error)
}

// DedupStore remembers event idempotency keys per kind for the
// retention window. PutIfAbsent reports whether the key was new.
type DedupStore interface {
	PutIfAbsent(kind string, key string, retention time.Duration) (bool, error)
}
