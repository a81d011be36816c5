package action

import (
	"context"
	"fmt"

	"docflow/executor"
	"docflow/model"
)

var _ Action = new(webhookAction)

type webhookAction struct {
	baseAction
	webhooks executor.WebhookCaller
}

func NewWebhookAction(def model.ActionDef, webhooks executor.WebhookCaller) *webhookAction {
	return &webhookAction{
		baseAction: newBaseAction(def),
		webhooks:   webhooks,
	}
}

func (a *webhookAction) Validate() error {
	if _, ok := a.params["url"]; !ok {
		return fmt.Errorf("action %s: parameter \"url\" is required", a.name)
	}
	return nil
}

func (a *webhookAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	url, err := requiredStringParam(params, "url", a.name)
	if err != nil {
		return Result{}, err
	}
	output, err := a.webhooks.Call(ctx, url, stringParam(params, "method"), stringMapParam(params, "headers"), mapParam(params, "body"))
	if err != nil {
		return Result{}, err
	}
	return Result{Output: output}, nil
}
