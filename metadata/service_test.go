package metadata

import (
	"testing"

	"docflow/model"
	"docflow/persistence/memory"
	"github.com/stretchr/testify/require"
)

func validWorkflow() model.Workflow {
	return model.Workflow{
		Id: "wf-1", Name: "invoice intake", Enabled: true, Policy: model.CONCURRENCY_EXCLUSIVE,
		Triggers: []model.Trigger{
			{Id: "t1", Kind: model.EVENT_FILE_ADDED, Patterns: []string{"/input/invoices/*"}},
			{Id: "t2", Kind: model.EVENT_TEMPLATE_MATCHED, TemplateName: "invoice_de"},
		},
		Actions: []model.ActionDef{
			{Name: "ocr", Type: model.ACTION_TYPE_OCR_PROCESS, Parameters: map[string]any{"file": "${event.path}"}},
			{Name: "archive", Type: model.ACTION_TYPE_FILE_TRANSFER, Label: "archive",
				Parameters: map[string]any{"source": "${event.path}", "target": "/archive/${event.path}"}},
		},
	}
}

func TestSaveWorkflowDefaultsAndValidation(t *testing.T) {
	svc := NewDefinitionService(memory.NewInMemoryMetadataStorage())

	require.NoError(t, svc.SaveWorkflow(validWorkflow()))

	stored, err := svc.GetWorkflow("wf-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, 0.8, stored.Triggers[1].MinConfidence, "confidence default applied")
	require.Equal(t, float64(0), stored.Triggers[0].MinConfidence, "file trigger untouched")
}

func TestSaveWorkflowRejects(t *testing.T) {
	svc := NewDefinitionService(memory.NewInMemoryMetadataStorage())

	badGate := model.ActionDef{Name: "gate", Type: model.ACTION_TYPE_EVALUATE_CONDITION,
		Condition: &model.Condition{Field: "p", Operator: model.OP_MATCHES_REGEX, Value: "(["}}
	for name, mutate := range map[string]func(wf *model.Workflow){
		"no actions":       func(wf *model.Workflow) { wf.Actions = nil },
		"unknown policy":   func(wf *model.Workflow) { wf.Policy = "SERIAL" },
		"bad template":     func(wf *model.Workflow) { wf.Actions[0].Parameters["file"] = "${event.path" },
		"bad trigger cron": func(wf *model.Workflow) { wf.Triggers[0].Schedule = &model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "x"} },
		"bad onFailure":    func(wf *model.Workflow) { wf.OnFailure = "no-such-label" },
		"bad branch regex": func(wf *model.Workflow) { wf.Actions[0] = badGate },
	} {
		t.Run(name, func(t *testing.T) {
			wf := validWorkflow()
			mutate(&wf)
			require.Error(t, svc.SaveWorkflow(wf))
		})
	}

	// nothing was stored along the way
	wfs, err := svc.ListWorkflows()
	require.NoError(t, err)
	require.Empty(t, wfs)
}

func TestWorkflowEnableDisable(t *testing.T) {
	svc := NewDefinitionService(memory.NewInMemoryMetadataStorage())
	require.NoError(t, svc.SaveWorkflow(validWorkflow()))

	wf, err := svc.SetWorkflowEnabled("wf-1", false)
	require.NoError(t, err)
	require.False(t, wf.Enabled)

	fetched, err := svc.GetWorkflow("wf-1")
	require.NoError(t, err)
	require.False(t, fetched.Enabled, "cache refreshed with the new flag")

	_, err = svc.SetWorkflowEnabled("missing", true)
	require.Error(t, err)
}

func TestDeleteWorkflowInvalidatesCache(t *testing.T) {
	svc := NewDefinitionService(memory.NewInMemoryMetadataStorage())
	require.NoError(t, svc.SaveWorkflow(validWorkflow()))
	require.NoError(t, svc.DeleteWorkflow("wf-1"))

	_, err := svc.GetWorkflow("wf-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestSaveRuleValidation(t *testing.T) {
	svc := NewDefinitionService(memory.NewInMemoryMetadataStorage())

	rule := model.Rule{
		Id: "r-1", Name: "large invoices", Enabled: true, Priority: 1,
		Condition: model.Condition{Field: "extracted_fields.total_amount.value", Operator: model.OP_GT, Value: 10000},
		Actions:   []model.ActionDef{{Name: "notify", Type: model.ACTION_TYPE_SEND_EMAIL, Parameters: map[string]any{"to": "cfo@acme.com"}}},
	}
	require.NoError(t, svc.SaveRule(rule))

	stored, err := svc.GetRule("r-1")
	require.NoError(t, err)
	require.NotNil(t, stored)

	bad := rule
	bad.Id = "r-2"
	bad.Condition = model.Condition{Field: "path", Operator: model.OP_MATCHES_REGEX, Value: "(["}
	err = svc.SaveRule(bad)
	require.Error(t, err)
	patternErr, ok := err.(model.InvalidRulePatternError)
	require.True(t, ok)
	require.Equal(t, "r-2", patternErr.RuleId)

	bad = rule
	bad.Id = "r-3"
	bad.Actions = []model.ActionDef{{Name: "typo", Type: "SEND_LETTER"}}
	require.Error(t, svc.SaveRule(bad))
}
