package action

import (
	"context"

	"docflow/audit"
	"docflow/model"
	"docflow/rules"
)

var _ Action = new(rulesAction)

// rulesAction runs the rule engine against the current context and
// splices whatever actions the matching rules produced into the run.
type rulesAction struct {
	baseAction
	engine *rules.Engine
	trail  *audit.Trail
}

func NewRulesAction(def model.ActionDef, engine *rules.Engine, trail *audit.Trail) *rulesAction {
	return &rulesAction{
		baseAction: newBaseAction(def),
		engine:     engine,
		trail:      trail,
	}
}

func (a *rulesAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	produced, matches := a.engine.Evaluate(data)
	if len(matches) > 0 {
		a.trail.RecordRulesMatched(runId, matches)
	}
	return Result{
		Output: map[string]any{"matchedRules": len(matches), "producedActions": len(produced)},
		Inject: produced,
	}, nil
}
