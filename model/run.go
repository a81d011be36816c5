package model

import "time"

type RunState string

const RUN_STATE_PENDING RunState = "PENDING"
const RUN_STATE_RUNNING RunState = "RUNNING"
const RUN_STATE_RETRYING RunState = "RETRYING"
const RUN_STATE_SUCCEEDED RunState = "SUCCEEDED"
const RUN_STATE_FAILED RunState = "FAILED"
const RUN_STATE_CANCELLED RunState = "CANCELLED"

func (s RunState) Terminal() bool {
	return s == RUN_STATE_SUCCEEDED || s == RUN_STATE_FAILED || s == RUN_STATE_CANCELLED
}

// Run is one execution of a workflow. The pipeline, policy and failure
// label are run-local copies so that editing a workflow never changes a
// run already in flight; EVALUATE_RULES may splice produced actions
// into the pipeline. A run is owned by exactly one engine worker at a
// time.
type Run struct {
	Id             string            `json:"id"`
	WorkflowId     string            `json:"workflowId"`
	WorkflowName   string            `json:"workflowName"`
	TriggerId      string            `json:"triggerId"`
	Event          Event             `json:"event"`
	Context        map[string]any    `json:"context"`
	Pipeline       []ActionDef       `json:"pipeline"`
	Policy         ConcurrencyPolicy `json:"policy"`
	OnFailure      string            `json:"onFailure,omitempty"`
	Position       int               `json:"position"`
	State          RunState          `json:"state"`
	Attempt        int               `json:"attempt"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt,omitempty"`
	ActionResults  []ActionResult    `json:"actionResults,omitempty"`
	Error          string            `json:"error,omitempty"`
	FailureHandled bool              `json:"failureHandled,omitempty"`

	CancelRequested bool `json:"-"`
}

const ACTION_STATUS_SUCCESS string = "SUCCESS"
const ACTION_STATUS_FAILED string = "FAILED"

type ActionResult struct {
	Ordinal    int        `json:"ordinal"`
	Name       string     `json:"name"`
	Type       ActionType `json:"type"`
	Attempts   int        `json:"attempts"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

type RunRequestType string

const RUN_EXECUTION_NEW RunRequestType = "NEW"
const RUN_EXECUTION_RESUME RunRequestType = "RESUME"
const RUN_EXECUTION_RETRY RunRequestType = "RETRY"

// RunExecutionRequest is the engine's dispatch message; retry and delay
// requests round-trip through the delay queue as JSON.
type RunExecutionRequest struct {
	RunId    string         `json:"runId"`
	Position int            `json:"position"`
	Attempt  int            `json:"attempt"`
	Type     RunRequestType `json:"type"`
}
