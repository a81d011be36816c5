package model

import (
	"context"
	"errors"
	"fmt"
)

// InvalidScheduleSpecError rejects a malformed schedule at registration
// time; schedules are never re-validated at evaluation time.
type InvalidScheduleSpecError struct {
	Expression string
	Reason     string
}

func (e InvalidScheduleSpecError) Error() string {
	return fmt.Sprintf("invalid schedule spec %q: %s", e.Expression, e.Reason)
}

// InvalidRulePatternError rejects a rule or branch condition whose
// MATCHES_REGEX pattern does not compile.
type InvalidRulePatternError struct {
	RuleId  string
	Pattern string
	Reason  string
}

func (e InvalidRulePatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q in rule %s: %s", e.Pattern, e.RuleId, e.Reason)
}

// ContextResolutionError is raised when a parameter template addresses a
// path absent from the run context. Always fatal; substitution never
// falls back to an empty value.
type ContextResolutionError struct {
	Expression string
}

func (e ContextResolutionError) Error() string {
	return fmt.Sprintf("can not resolve %q from run context", e.Expression)
}

// ActionError carries the retryable/fatal classification of an action
// failure.
type ActionError struct {
	Retryable bool
	Err       error
}

func (e *ActionError) Error() string {
	return e.Err.Error()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error) error {
	return &ActionError{Retryable: true, Err: err}
}

func NewFatalError(err error) error {
	return &ActionError{Retryable: false, Err: err}
}

// IsRetryable classifies an action failure. Timeouts are retryable,
// unresolved context lookups are fatal, and unclassified errors retry
// so that plain capability errors keep the bounded-retry behavior.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	var cre ContextResolutionError
	if errors.As(err, &cre) {
		return false
	}
	return true
}
