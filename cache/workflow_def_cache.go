package cache

import (
	"time"

	c "github.com/patrickmn/go-cache"

	"docflow/model"
)

// WorkflowDefCache keeps workflow definitions close to the engine so
// run dispatch does not hit storage. Entries expire after five minutes,
// which bounds staleness when another instance writes a definition.
type WorkflowDefCache struct {
	cache *c.Cache
}

func NewWorkflowDefCache() *WorkflowDefCache {
	return &WorkflowDefCache{
		cache: c.New(5*time.Minute, 10*time.Minute),
	}
}

func (ch *WorkflowDefCache) Put(wf model.Workflow) {
	ch.cache.Set(wf.Id, wf, c.DefaultExpiration)
}

func (ch *WorkflowDefCache) Get(id string) (model.Workflow, bool) {
	val, found := ch.cache.Get(id)
	if !found {
		return model.Workflow{}, false
	}
	wf, ok := val.(model.Workflow)
	return wf, ok
}

func (ch *WorkflowDefCache) Invalidate(id string) {
	ch.cache.Delete(id)
}
