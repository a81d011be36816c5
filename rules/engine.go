// Package rules holds the registry of conditional rules and evaluates
// them against event data.
package rules

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"docflow/condition"
	"docflow/logger"
	"docflow/model"

	"go.uber.org/zap"
)

type compiledRule struct {
	rule model.Rule
	cond *condition.Compiled
}

// Match reports one rule that held, with the leaves that made it hold.
type Match struct {
	RuleId   string                `json:"ruleId"`
	RuleName string                `json:"ruleName"`
	Leaves   []condition.LeafMatch `json:"leaves,omitempty"`
}

type Engine struct {
	mu      sync.RWMutex
	rules   map[string]*compiledRule
	matched atomic.Int64
}

func NewEngine() *Engine {
	return &Engine{rules: make(map[string]*compiledRule)}
}

// Register compiles and stores the rule, replacing any previous rule
// with the same id. A rule whose condition does not compile is rejected
// and the registry is left untouched.
func (e *Engine) Register(rule model.Rule) error {
	if rule.Id == "" {
		return fmt.Errorf("rule id is required")
	}
	compiled, err := condition.Compile(rule.Condition)
	if err != nil {
		if patternErr, ok := err.(model.InvalidRulePatternError); ok {
			patternErr.RuleId = rule.Id
			return patternErr
		}
		return fmt.Errorf("rule %s: %w", rule.Id, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.Id] = &compiledRule{rule: rule, cond: compiled}
	return nil
}

// Reload replaces the whole registry. Rules that fail to compile are
// skipped with an error log so one bad definition cannot take the rest
// of the registry down.
func (e *Engine) Reload(rules []model.Rule) {
	next := make(map[string]*compiledRule, len(rules))
	for _, rule := range rules {
		compiled, err := condition.Compile(rule.Condition)
		if err != nil {
			logger.Error("skipping rule with invalid condition", zap.String("ruleId", rule.Id), zap.Error(err))
			continue
		}
		next[rule.Id] = &compiledRule{rule: rule, cond: compiled}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = next
}

func (e *Engine) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
}

func (e *Engine) Get(id string) (model.Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cr, ok := e.rules[id]
	if !ok {
		return model.Rule{}, false
	}
	return cr.rule, true
}

func (e *Engine) Enable(id string) error {
	return e.setEnabled(id, true)
}

func (e *Engine) Disable(id string) error {
	return e.setEnabled(id, false)
}

func (e *Engine) setEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cr, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("rule %s not found", id)
	}
	cr.rule.Enabled = enabled
	return nil
}

// List returns all registered rules ordered by (priority, id).
func (e *Engine) List() []model.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Rule, 0, len(e.rules))
	for _, cr := range e.rules {
		out = append(out, cr.rule)
	}
	sortRules(out)
	return out
}

// Evaluate runs every enabled rule against the data. All rules are
// evaluated, never first-match-wins. The returned actions are the
// concatenation of each matching rule's actions in ascending
// (priority, id) order.
func (e *Engine) Evaluate(data map[string]any) ([]model.ActionDef, []Match) {
	e.mu.RLock()
	ordered := make([]*compiledRule, 0, len(e.rules))
	for _, cr := range e.rules {
		if cr.rule.Enabled {
			ordered = append(ordered, cr)
		}
	}
	e.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].rule.Priority != ordered[j].rule.Priority {
			return ordered[i].rule.Priority < ordered[j].rule.Priority
		}
		return ordered[i].rule.Id < ordered[j].rule.Id
	})

	var actions []model.ActionDef
	var matches []Match
	for _, cr := range ordered {
		ok, leaves := cr.cond.Evaluate(data)
		if !ok {
			continue
		}
		actions = append(actions, cr.rule.Actions...)
		matches = append(matches, Match{RuleId: cr.rule.Id, RuleName: cr.rule.Name, Leaves: leaves})
	}
	e.matched.Add(int64(len(matches)))
	return actions, matches
}

// Matched returns the total number of rule matches since startup.
func (e *Engine) Matched() int64 {
	return e.matched.Load()
}

func sortRules(rules []model.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Id < rules[j].Id
	})
}
