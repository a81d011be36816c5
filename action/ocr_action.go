package action

import (
	"context"
	"fmt"

	"docflow/executor"
	"docflow/model"
)

var _ Action = new(ocrAction)

type ocrAction struct {
	baseAction
	ocr executor.OCRExecutor
}

func NewOcrAction(def model.ActionDef, ocr executor.OCRExecutor) *ocrAction {
	return &ocrAction{
		baseAction: newBaseAction(def),
		ocr:        ocr,
	}
}

func (a *ocrAction) Validate() error {
	if _, ok := a.params["file"]; !ok {
		return fmt.Errorf("action %s: parameter \"file\" is required", a.name)
	}
	return nil
}

func (a *ocrAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	file, err := requiredStringParam(params, "file", a.name)
	if err != nil {
		return Result{}, err
	}
	output, err := a.ocr.Process(ctx, file, stringParam(params, "language"))
	if err != nil {
		return Result{}, err
	}
	return Result{Output: output}, nil
}
