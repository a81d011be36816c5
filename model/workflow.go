package model

import (
	"fmt"
	"path"
	"regexp"
)

type ConcurrencyPolicy string

const CONCURRENCY_PARALLEL ConcurrencyPolicy = "PARALLEL"
const CONCURRENCY_EXCLUSIVE ConcurrencyPolicy = "EXCLUSIVE"

type ActionType string

const ACTION_TYPE_OCR_PROCESS ActionType = "OCR_PROCESS"
const ACTION_TYPE_EXTRACT_FIELDS ActionType = "EXTRACT_FIELDS"
const ACTION_TYPE_VALIDATE_DATA ActionType = "VALIDATE_DATA"
const ACTION_TYPE_FILE_TRANSFER ActionType = "FILE_TRANSFER"
const ACTION_TYPE_SEND_EMAIL ActionType = "SEND_EMAIL"
const ACTION_TYPE_CALL_WEBHOOK ActionType = "CALL_WEBHOOK"
const ACTION_TYPE_RUN_SCRIPT ActionType = "RUN_SCRIPT"
const ACTION_TYPE_EVALUATE_CONDITION ActionType = "EVALUATE_CONDITION"
const ACTION_TYPE_EVALUATE_RULES ActionType = "EVALUATE_RULES"
const ACTION_TYPE_DELAY ActionType = "DELAY"

type RetryPolicy string

const RETRY_POLICY_FIXED RetryPolicy = "FIXED"
const RETRY_POLICY_BACKOFF RetryPolicy = "BACKOFF"

// BRANCH_ABORT as a branch target ends the run instead of jumping to a
// label.
const BRANCH_ABORT string = "abort"

// Workflow is configuration data: an ordered action pipeline plus the
// triggers that start it. Runs reference workflows by id and never
// mutate them.
type Workflow struct {
	Id        string            `json:"id"`
	Name      string            `json:"name"`
	Enabled   bool              `json:"enabled"`
	Policy    ConcurrencyPolicy `json:"policy"`
	Triggers  []Trigger         `json:"triggers"`
	Actions   []ActionDef       `json:"actions"`
	OnFailure string            `json:"onFailure,omitempty"`
}

// Trigger matches events of one kind. Matcher fields apply per kind;
// a workflow is matched when any of its triggers match.
type Trigger struct {
	Id              string        `json:"id"`
	Kind            EventKind     `json:"kind"`
	Patterns        []string      `json:"patterns,omitempty"`
	Extensions      []string      `json:"extensions,omitempty"`
	TemplateName    string        `json:"templateName,omitempty"`
	MinConfidence   float64       `json:"minConfidence,omitempty"`
	JobId           string        `json:"jobId,omitempty"`
	Schedule        *ScheduleSpec `json:"schedule,omitempty"`
	WebhookPath     string        `json:"webhookPath,omitempty"`
	Senders         []string      `json:"senders,omitempty"`
	SubjectContains []string      `json:"subjectContains,omitempty"`
	SubjectRegex    string        `json:"subjectRegex,omitempty"`
}

type ActionDef struct {
	Name              string         `json:"name"`
	Type              ActionType     `json:"type"`
	Label             string         `json:"label,omitempty"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	OutputKey         string         `json:"outputKey,omitempty"`
	RetryCount        int            `json:"retryCount,omitempty"`
	RetryPolicy       RetryPolicy    `json:"retryPolicy,omitempty"`
	RetryAfterSeconds int            `json:"retryAfterSeconds,omitempty"`
	TimeoutSeconds    int            `json:"timeoutSeconds,omitempty"`
	Condition         *Condition     `json:"condition,omitempty"`
	OnTrue            string         `json:"onTrue,omitempty"`
	OnFalse           string         `json:"onFalse,omitempty"`
	Expression        string         `json:"expression,omitempty"`
	DelaySeconds      int            `json:"delaySeconds,omitempty"`
}

// Validate checks the standalone shape of one action definition.
// Label targets need the surrounding workflow and are checked there.
func (a ActionDef) Validate() error {
	if len(a.Name) == 0 {
		return fmt.Errorf("action name can not be empty")
	}
	if !knownActionType(a.Type) {
		return fmt.Errorf("action %s has unknown type %q", a.Name, a.Type)
	}
	switch a.RetryPolicy {
	case "", RETRY_POLICY_FIXED, RETRY_POLICY_BACKOFF:
	default:
		return fmt.Errorf("action %s has unknown retry policy %q", a.Name, a.RetryPolicy)
	}
	if a.Type == ACTION_TYPE_EVALUATE_CONDITION && a.Condition == nil {
		return fmt.Errorf("branch action %s has no condition", a.Name)
	}
	if a.Type == ACTION_TYPE_RUN_SCRIPT && len(a.Expression) == 0 {
		return fmt.Errorf("script action %s has no expression", a.Name)
	}
	if a.Type == ACTION_TYPE_DELAY && a.DelaySeconds <= 0 {
		return fmt.Errorf("delay action %s needs delaySeconds > 0", a.Name)
	}
	return nil
}

func knownActionType(t ActionType) bool {
	switch t {
	case ACTION_TYPE_OCR_PROCESS, ACTION_TYPE_EXTRACT_FIELDS, ACTION_TYPE_VALIDATE_DATA,
		ACTION_TYPE_FILE_TRANSFER, ACTION_TYPE_SEND_EMAIL, ACTION_TYPE_CALL_WEBHOOK,
		ACTION_TYPE_RUN_SCRIPT, ACTION_TYPE_EVALUATE_CONDITION, ACTION_TYPE_EVALUATE_RULES,
		ACTION_TYPE_DELAY:
		return true
	}
	return false
}

func knownEventKind(k EventKind) bool {
	switch k {
	case EVENT_FILE_ADDED, EVENT_TEMPLATE_MATCHED, EVENT_SCHEDULE_FIRED,
		EVENT_WEBHOOK_RECEIVED, EVENT_EMAIL_RECEIVED:
		return true
	}
	return false
}

// Validate checks structure at registration time: ids, known kinds and
// types, unique labels and resolvable branch targets. Parameter template
// syntax, condition trees and schedule specs are validated by the
// metadata service with their own compilers.
func (w Workflow) Validate() error {
	if len(w.Id) == 0 {
		return fmt.Errorf("workflow id can not be empty")
	}
	if len(w.Name) == 0 {
		return fmt.Errorf("workflow name can not be empty")
	}
	switch w.Policy {
	case CONCURRENCY_PARALLEL, CONCURRENCY_EXCLUSIVE:
	default:
		return fmt.Errorf("workflow %s: unknown concurrency policy %q", w.Id, w.Policy)
	}
	if len(w.Actions) == 0 {
		return fmt.Errorf("workflow %s: should have at least one action", w.Id)
	}
	labels := make(map[string]bool)
	for i, a := range w.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("workflow %s: action %d: %w", w.Id, i, err)
		}
		if len(a.Label) > 0 {
			if labels[a.Label] {
				return fmt.Errorf("workflow %s: duplicate action label %q", w.Id, a.Label)
			}
			labels[a.Label] = true
		}
	}
	for i, a := range w.Actions {
		if a.Type == ACTION_TYPE_EVALUATE_CONDITION {
			for _, target := range []string{a.OnTrue, a.OnFalse} {
				if len(target) > 0 && target != BRANCH_ABORT && !labels[target] {
					return fmt.Errorf("workflow %s: branch action %d targets unknown label %q", w.Id, i, target)
				}
			}
		}
	}
	if len(w.OnFailure) > 0 && !labels[w.OnFailure] {
		return fmt.Errorf("workflow %s: onFailure targets unknown label %q", w.Id, w.OnFailure)
	}
	for i, t := range w.Triggers {
		if len(t.Id) == 0 {
			return fmt.Errorf("workflow %s: trigger %d has no id", w.Id, i)
		}
		if !knownEventKind(t.Kind) {
			return fmt.Errorf("workflow %s: trigger %s has unknown kind %q", w.Id, t.Id, t.Kind)
		}
		if t.Kind == EVENT_FILE_ADDED && len(t.Patterns) == 0 && len(t.Extensions) == 0 {
			return fmt.Errorf("workflow %s: file trigger %s needs patterns or extensions", w.Id, t.Id)
		}
		for _, p := range t.Patterns {
			if _, err := path.Match(p, "probe"); err != nil {
				return fmt.Errorf("workflow %s: trigger %s has malformed pattern %q", w.Id, t.Id, p)
			}
		}
		if len(t.SubjectRegex) > 0 {
			if _, err := regexp.Compile(t.SubjectRegex); err != nil {
				return fmt.Errorf("workflow %s: trigger %s has invalid subject regex: %v", w.Id, t.Id, err)
			}
		}
	}
	return nil
}
