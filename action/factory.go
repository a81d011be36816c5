package action

import (
	"fmt"

	"docflow/audit"
	"docflow/executor"
	"docflow/model"
	"docflow/rules"
)

// Factory builds executable actions from definitions, binding in the
// capability ports. Build also validates, so a malformed definition
// surfaces as a fatal configuration error instead of a panic later.
type Factory struct {
	caps  executor.Capabilities
	rules *rules.Engine
	trail *audit.Trail
}

func NewFactory(caps executor.Capabilities, rulesEngine *rules.Engine, trail *audit.Trail) *Factory {
	return &Factory{
		caps:  caps,
		rules: rulesEngine,
		trail: trail,
	}
}

func (f *Factory) Build(def model.ActionDef) (Action, error) {
	var act Action
	var err error
	switch def.Type {
	case model.ACTION_TYPE_OCR_PROCESS:
		act = NewOcrAction(def, f.caps.OCR)
	case model.ACTION_TYPE_EXTRACT_FIELDS:
		act = NewExtractAction(def, f.caps.Extractor)
	case model.ACTION_TYPE_VALIDATE_DATA:
		act, err = NewValidateAction(def)
	case model.ACTION_TYPE_FILE_TRANSFER:
		act = NewFileAction(def, f.caps.Files)
	case model.ACTION_TYPE_SEND_EMAIL:
		act = NewEmailAction(def, f.caps.Mailer)
	case model.ACTION_TYPE_CALL_WEBHOOK:
		act = NewWebhookAction(def, f.caps.Webhooks)
	case model.ACTION_TYPE_RUN_SCRIPT:
		act = NewScriptAction(def)
	case model.ACTION_TYPE_EVALUATE_CONDITION:
		act, err = NewBranchAction(def, f.trail)
	case model.ACTION_TYPE_EVALUATE_RULES:
		act = NewRulesAction(def, f.rules, f.trail)
	case model.ACTION_TYPE_DELAY:
		act = NewDelayAction(def)
	default:
		return nil, fmt.Errorf("unknown action type %q", def.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := act.Validate(); err != nil {
		return nil, err
	}
	return act, nil
}
