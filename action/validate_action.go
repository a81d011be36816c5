package action

import (
	"context"
	"fmt"

	"docflow/condition"
	"docflow/model"
)

var _ Action = new(validateAction)

// validateAction asserts a condition over the run context. A failed
// validation is a data problem, never retried.
type validateAction struct {
	baseAction
	compiled *condition.Compiled
}

func NewValidateAction(def model.ActionDef) (*validateAction, error) {
	if def.Condition == nil {
		return nil, fmt.Errorf("action %s: validation needs a condition", def.Name)
	}
	compiled, err := condition.Compile(*def.Condition)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", def.Name, err)
	}
	return &validateAction{
		baseAction: newBaseAction(def),
		compiled:   compiled,
	}, nil
}

func (a *validateAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	ok, matched := a.compiled.Evaluate(data)
	if !ok {
		return Result{}, model.NewFatalError(fmt.Errorf("action %s: data validation failed", a.name))
	}
	return Result{Output: map[string]any{"valid": true, "checks": len(matched)}}, nil
}
