package action

import (
	"context"
	"fmt"

	"docflow/audit"
	"docflow/condition"
	"docflow/model"
)

var _ Action = new(branchAction)

// branchAction evaluates its condition and reports where the run goes
// next. It has no error path: both outcomes are regular control flow.
type branchAction struct {
	baseAction
	compiled *condition.Compiled
	onTrue   string
	onFalse  string
	trail    *audit.Trail
}

func NewBranchAction(def model.ActionDef, trail *audit.Trail) (*branchAction, error) {
	if def.Condition == nil {
		return nil, fmt.Errorf("action %s: branch needs a condition", def.Name)
	}
	compiled, err := condition.Compile(*def.Condition)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", def.Name, err)
	}
	return &branchAction{
		baseAction: newBaseAction(def),
		compiled:   compiled,
		onTrue:     def.OnTrue,
		onFalse:    def.OnFalse,
		trail:      trail,
	}, nil
}

func (a *branchAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	outcome, _ := a.compiled.Evaluate(data)
	target := a.onFalse
	if outcome {
		target = a.onTrue
	}
	a.trail.RecordBranch(runId, a.name, outcome, target)
	return Result{
		Output: map[string]any{"outcome": outcome},
		Event:  target,
	}, nil
}
