// Package metadata validates and serves workflow and rule definitions
// on top of the persistence layer.
package metadata

import (
	"fmt"

	"docflow/cache"
	"docflow/condition"
	"docflow/model"
	"docflow/persistence"
	"docflow/schedule"
	"docflow/util"
)

// Template-matched triggers that do not name a confidence threshold
// get this one.
const defaultMinConfidence = 0.8

type DefinitionService struct {
	storage persistence.MetadataStorage
	cache   *cache.WorkflowDefCache
}

func NewDefinitionService(storage persistence.MetadataStorage) *DefinitionService {
	return &DefinitionService{
		storage: storage,
		cache:   cache.NewWorkflowDefCache(),
	}
}

// SaveWorkflow validates the definition with the same compilers the
// engine later runs it with, so a stored workflow never fails to build.
func (s *DefinitionService) SaveWorkflow(wf model.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	for i := range wf.Triggers {
		t := &wf.Triggers[i]
		if t.Kind == model.EVENT_TEMPLATE_MATCHED && t.MinConfidence == 0 {
			t.MinConfidence = defaultMinConfidence
		}
		if t.Schedule != nil {
			if err := schedule.Validate(*t.Schedule); err != nil {
				return fmt.Errorf("workflow %s trigger %s: %w", wf.Id, t.Id, err)
			}
		}
	}
	for _, a := range wf.Actions {
		if err := validateActionDef(a); err != nil {
			return fmt.Errorf("workflow %s action %s: %w", wf.Id, a.Name, err)
		}
	}
	if err := s.storage.SaveWorkflow(wf); err != nil {
		return err
	}
	s.cache.Put(wf)
	return nil
}

func (s *DefinitionService) GetWorkflow(id string) (*model.Workflow, error) {
	if wf, ok := s.cache.Get(id); ok {
		return &wf, nil
	}
	wf, err := s.storage.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	s.cache.Put(*wf)
	return wf, nil
}

func (s *DefinitionService) DeleteWorkflow(id string) error {
	if err := s.storage.DeleteWorkflow(id); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	return nil
}

func (s *DefinitionService) ListWorkflows() ([]model.Workflow, error) {
	return s.storage.ListWorkflows()
}

// SetWorkflowEnabled flips the stored flag and refreshes the cache.
func (s *DefinitionService) SetWorkflowEnabled(id string, enabled bool) (*model.Workflow, error) {
	wf, err := s.storage.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	wf.Enabled = enabled
	if err := s.storage.SaveWorkflow(*wf); err != nil {
		return nil, err
	}
	s.cache.Put(*wf)
	return wf, nil
}

func (s *DefinitionService) SaveRule(rule model.Rule) error {
	if len(rule.Id) == 0 {
		return fmt.Errorf("rule id can not be empty")
	}
	if len(rule.Name) == 0 {
		return fmt.Errorf("rule name can not be empty")
	}
	if _, err := condition.Compile(rule.Condition); err != nil {
		if patternErr, ok := err.(model.InvalidRulePatternError); ok {
			patternErr.RuleId = rule.Id
			return patternErr
		}
		return fmt.Errorf("rule %s: %w", rule.Id, err)
	}
	for _, a := range rule.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", rule.Id, err)
		}
		if err := validateActionDef(a); err != nil {
			return fmt.Errorf("rule %s action %s: %w", rule.Id, a.Name, err)
		}
	}
	return s.storage.SaveRule(rule)
}

func (s *DefinitionService) GetRule(id string) (*model.Rule, error) {
	rule, err := s.storage.GetRule(id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	return rule, nil
}

func (s *DefinitionService) DeleteRule(id string) error {
	return s.storage.DeleteRule(id)
}

func (s *DefinitionService) ListRules() ([]model.Rule, error) {
	return s.storage.ListRules()
}

// validateActionDef covers what shape validation cannot: parameter
// template syntax and branch condition compilation.
func validateActionDef(a model.ActionDef) error {
	if err := util.ValidateTemplates(a.Parameters); err != nil {
		return err
	}
	if a.Condition != nil {
		if _, err := condition.Compile(*a.Condition); err != nil {
			return err
		}
	}
	return nil
}
