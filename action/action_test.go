package action

import (
	"context"
	"testing"
	"time"

	"docflow/audit"
	"docflow/config"
	"docflow/executor"
	"docflow/model"
	"docflow/rules"
	"github.com/stretchr/testify/require"
)

func testFactory() *Factory {
	return NewFactory(executor.DefaultCapabilities(), rules.NewEngine(), audit.NewTrail(config.AuditConfig{}))
}

func contextData(amount any) map[string]any {
	return map[string]any{
		"event":            map[string]any{"path": "/input/invoices/march.pdf", "size": 2048},
		"extracted_fields": map[string]any{"total_amount": map[string]any{"value": amount}},
	}
}

func TestScriptAction(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"map result merges":         testScriptMapResult,
		"scalar result under value": testScriptScalarResult,
		"script error is fatal":     testScriptError,
	} {
		t.Run(scenario, fn)
	}
}

func testScriptMapResult(t *testing.T) {
	act := NewScriptAction(model.ActionDef{
		Name: "derive", Type: model.ACTION_TYPE_RUN_SCRIPT,
		Expression: "({doubled: $.event.size * 2, source: $.event.path})",
	})
	res, err := act.Execute(context.Background(), "run-1", nil, contextData(100))
	require.NoError(t, err)
	require.EqualValues(t, 4096, res.Output["doubled"])
	require.Equal(t, "/input/invoices/march.pdf", res.Output["source"])
}

func testScriptScalarResult(t *testing.T) {
	act := NewScriptAction(model.ActionDef{
		Name: "sum", Type: model.ACTION_TYPE_RUN_SCRIPT,
		Expression: "$.event.size + 2",
	})
	res, err := act.Execute(context.Background(), "run-1", nil, contextData(100))
	require.NoError(t, err)
	require.EqualValues(t, 2050, res.Output["value"])
}

func testScriptError(t *testing.T) {
	act := NewScriptAction(model.ActionDef{
		Name: "boom", Type: model.ACTION_TYPE_RUN_SCRIPT,
		Expression: `throw new Error("bad input")`,
	})
	_, err := act.Execute(context.Background(), "run-1", nil, contextData(100))
	require.Error(t, err)
	require.False(t, model.IsRetryable(err))
}

func TestBranchAction(t *testing.T) {
	def := model.ActionDef{
		Name: "amount gate", Type: model.ACTION_TYPE_EVALUATE_CONDITION,
		Condition: &model.Condition{Field: "extracted_fields.total_amount.value", Operator: model.OP_GT, Value: 10000},
		OnTrue:    "approval",
		OnFalse:   "archive",
	}
	act, err := NewBranchAction(def, audit.NewTrail(config.AuditConfig{}))
	require.NoError(t, err)

	res, err := act.Execute(context.Background(), "run-1", nil, contextData(15000))
	require.NoError(t, err)
	require.Equal(t, "approval", res.Event)
	require.Equal(t, true, res.Output["outcome"])

	res, err = act.Execute(context.Background(), "run-1", nil, contextData(500))
	require.NoError(t, err)
	require.Equal(t, "archive", res.Event)
}

func TestValidateAction(t *testing.T) {
	def := model.ActionDef{
		Name: "sanity", Type: model.ACTION_TYPE_VALIDATE_DATA,
		Condition: &model.Condition{Field: "extracted_fields.total_amount.value", Operator: model.OP_GT, Value: 0},
	}
	act, err := NewValidateAction(def)
	require.NoError(t, err)

	_, err = act.Execute(context.Background(), "run-1", nil, contextData(12))
	require.NoError(t, err)

	_, err = act.Execute(context.Background(), "run-1", nil, contextData(-3))
	require.Error(t, err)
	require.False(t, model.IsRetryable(err), "validation failures are not retried")
}

func TestRulesActionSplices(t *testing.T) {
	engine := rules.NewEngine()
	require.NoError(t, engine.Register(model.Rule{
		Id: "r-1", Name: "large invoice", Enabled: true, Priority: 1,
		Condition: model.Condition{Field: "extracted_fields.total_amount.value", Operator: model.OP_GT, Value: 10000},
		Actions: []model.ActionDef{
			{Name: "notify", Type: model.ACTION_TYPE_SEND_EMAIL},
			{Name: "flag", Type: model.ACTION_TYPE_RUN_SCRIPT, Expression: "1"},
		},
	}))

	act := NewRulesAction(model.ActionDef{Name: "apply rules", Type: model.ACTION_TYPE_EVALUATE_RULES},
		engine, audit.NewTrail(config.AuditConfig{}))

	res, err := act.Execute(context.Background(), "run-1", nil, contextData(15000))
	require.NoError(t, err)
	require.Len(t, res.Inject, 2)
	require.Equal(t, "notify", res.Inject[0].Name)
	require.Equal(t, 1, res.Output["matchedRules"])

	res, err = act.Execute(context.Background(), "run-1", nil, contextData(10))
	require.NoError(t, err)
	require.Empty(t, res.Inject)
}

func TestDelayAction(t *testing.T) {
	act := NewDelayAction(model.ActionDef{Name: "cool off", Type: model.ACTION_TYPE_DELAY, DelaySeconds: 90})
	res, err := act.Execute(context.Background(), "run-1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, res.Delay)
}

func TestFactoryBuild(t *testing.T) {
	factory := testFactory()

	for name, def := range map[string]model.ActionDef{
		"ocr":     {Name: "ocr", Type: model.ACTION_TYPE_OCR_PROCESS, Parameters: map[string]any{"file": "${event.path}"}},
		"branch":  {Name: "gate", Type: model.ACTION_TYPE_EVALUATE_CONDITION, Condition: &model.Condition{Field: "a", Operator: model.OP_EQ, Value: 1}},
		"webhook": {Name: "notify", Type: model.ACTION_TYPE_CALL_WEBHOOK, Parameters: map[string]any{"url": "http://example.com"}},
		"rules":   {Name: "rules", Type: model.ACTION_TYPE_EVALUATE_RULES},
		"delay":   {Name: "wait", Type: model.ACTION_TYPE_DELAY, DelaySeconds: 10},
	} {
		t.Run(name, func(t *testing.T) {
			act, err := factory.Build(def)
			require.NoError(t, err)
			require.Equal(t, def.Type, act.GetType())
			require.Equal(t, def.Name, act.GetName())
		})
	}

	for name, def := range map[string]model.ActionDef{
		"unknown type":        {Name: "x", Type: "TELEPORT"},
		"ocr without file":    {Name: "ocr", Type: model.ACTION_TYPE_OCR_PROCESS},
		"branch no condition": {Name: "gate", Type: model.ACTION_TYPE_EVALUATE_CONDITION},
		"script no code":      {Name: "js", Type: model.ACTION_TYPE_RUN_SCRIPT},
		"webhook without url": {Name: "notify", Type: model.ACTION_TYPE_CALL_WEBHOOK},
		"transfer one side":   {Name: "mv", Type: model.ACTION_TYPE_FILE_TRANSFER, Parameters: map[string]any{"source": "/a"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := factory.Build(def)
			require.Error(t, err)
		})
	}
}
