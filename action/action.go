// Package action implements the pipeline action types. The engine
// resolves parameters, builds the action through the factory and
// executes it; the Result steers what happens next.
package action

import (
	"context"
	"time"

	"docflow/model"
)

// Result is what an action hands back to the engine.
// Output merges into the run context. Event names a label to jump to,
// BRANCH_ABORT to end the run, or stays empty to fall through. Inject
// splices produced actions after the current position. Delay parks the
// run before it resumes.
type Result struct {
	Output map[string]any
	Event  string
	Inject []model.ActionDef
	Delay  time.Duration
}

type Action interface {
	GetName() string
	GetType() model.ActionType
	Validate() error
	Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error)
}

type baseAction struct {
	name    string
	actType model.ActionType
	params  map[string]any
}

func newBaseAction(def model.ActionDef) baseAction {
	return baseAction{
		name:    def.Name,
		actType: def.Type,
		params:  def.Parameters,
	}
}

func (ba *baseAction) GetName() string {
	return ba.name
}

func (ba *baseAction) GetType() model.ActionType {
	return ba.actType
}

func (ba *baseAction) Validate() error {
	return nil
}
