package action

import (
	"context"
	"fmt"

	"docflow/executor"
	"docflow/model"
)

var _ Action = new(extractAction)

type extractAction struct {
	baseAction
	extractor executor.FieldExtractor
}

func NewExtractAction(def model.ActionDef, extractor executor.FieldExtractor) *extractAction {
	return &extractAction{
		baseAction: newBaseAction(def),
		extractor:  extractor,
	}
}

func (a *extractAction) Validate() error {
	if _, ok := a.params["file"]; !ok {
		return fmt.Errorf("action %s: parameter \"file\" is required", a.name)
	}
	return nil
}

func (a *extractAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	file, err := requiredStringParam(params, "file", a.name)
	if err != nil {
		return Result{}, err
	}
	fields, err := a.extractor.Extract(ctx, file, stringParam(params, "template"))
	if err != nil {
		return Result{}, err
	}
	return Result{Output: fields}, nil
}
