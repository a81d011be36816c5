package action

import (
	"context"
	"fmt"

	"docflow/executor"
	"docflow/model"
)

var _ Action = new(fileAction)

type fileAction struct {
	baseAction
	files executor.FileMover
}

func NewFileAction(def model.ActionDef, files executor.FileMover) *fileAction {
	return &fileAction{
		baseAction: newBaseAction(def),
		files:      files,
	}
}

func (a *fileAction) Validate() error {
	for _, key := range []string{"source", "target"} {
		if _, ok := a.params[key]; !ok {
			return fmt.Errorf("action %s: parameter %q is required", a.name, key)
		}
	}
	return nil
}

func (a *fileAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	source, err := requiredStringParam(params, "source", a.name)
	if err != nil {
		return Result{}, err
	}
	target, err := requiredStringParam(params, "target", a.name)
	if err != nil {
		return Result{}, err
	}
	copyOnly := stringParam(params, "mode") == "copy"
	finalPath, err := a.files.Move(ctx, source, target, copyOnly)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: map[string]any{"path": finalPath}}, nil
}
