package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"docflow/model"
)

var _ Action = new(scriptAction)

// scriptAction runs an in-process javascript expression with the run
// context bound to $. The expression's value becomes the output: a map
// merges as-is, anything else lands under "value".
type scriptAction struct {
	baseAction
	expression string
}

func NewScriptAction(def model.ActionDef) *scriptAction {
	return &scriptAction{
		baseAction: newBaseAction(def),
		expression: def.Expression,
	}
}

func (a *scriptAction) Validate() error {
	if len(a.expression) == 0 {
		return fmt.Errorf("action %s: expression can not be empty", a.name)
	}
	return nil
}

func (a *scriptAction) Execute(ctx context.Context, runId string, params map[string]any, data map[string]any) (Result, error) {
	contextJson, err := json.Marshal(data)
	if err != nil {
		return Result{}, model.NewFatalError(err)
	}
	script := fmt.Sprintf("var $ = %s;\n%s", contextJson, a.expression)
	vm := goja.New()
	val, err := vm.RunString(script)
	if err != nil {
		return Result{}, model.NewFatalError(fmt.Errorf("error executing javascript %w", err))
	}
	exported := val.Export()
	if exported == nil {
		return Result{}, nil
	}
	if m, ok := exported.(map[string]any); ok {
		return Result{Output: m}, nil
	}
	return Result{Output: map[string]any{"value": exported}}, nil
}
