package action

import (
	"context"
	"fmt"

	"docflow/executor"
	"docflow/model"
)

var _ Action = new(emailAction)

type emailAction struct {
	baseAction
	mailer executor.Mailer
}

func NewEmailAction(def model.ActionDef, mailer executor.Mailer) *emailAction {
	return &emailAction{
		baseAction: newBaseAction(def),
		mailer:     mailer,
	}
}

func (a *emailAction) Validate() error {
	if _, ok := a.params["to"]; !ok {
		return fmt.Errorf("action %s: parameter \"to\" is required", a.name)
	}
	return nil
}

func (a *emailAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	to := stringSliceParam(params, "to")
	if len(to) == 0 {
		return Result{}, model.NewFatalError(fmt.Errorf("action %s: parameter \"to\" is required", a.name))
	}
	err := a.mailer.Send(ctx, to, stringParam(params, "subject"), stringParam(params, "body"), stringSliceParam(params, "attachments"))
	if err != nil {
		return Result{}, err
	}
	return Result{Output: map[string]any{"sent": true, "recipients": to}}, nil
}
