package action

import (
	"context"
	"fmt"
	"time"

	"docflow/model"
)

var _ Action = new(delayAction)

type delayAction struct {
	baseAction
	delay time.Duration
}

func NewDelayAction(def model.ActionDef) *delayAction {
	return &delayAction{
		baseAction: newBaseAction(def),
		delay:      time.Duration(def.DelaySeconds) * time.Second,
	}
}

func (a *delayAction) Validate() error {
	if a.delay <= 0 {
		return fmt.Errorf("action %s: delay must be positive", a.name)
	}
	return nil
}

func (a *delayAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	return Result{Delay: a.delay}, nil
}
