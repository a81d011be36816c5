package model

import "time"

type ScheduleKind string

const SCHEDULE_CRON ScheduleKind = "CRON"
const SCHEDULE_INTERVAL ScheduleKind = "INTERVAL"
const SCHEDULE_ONCE ScheduleKind = "ONCE"

type ScheduleSpec struct {
	Type            ScheduleKind `json:"type"`
	Expression      string       `json:"expression,omitempty"`
	IntervalSeconds int64        `json:"intervalSeconds,omitempty"`
	FireAt          time.Time    `json:"fireAt,omitempty"`
}

type MissedFirePolicy string

const MISSED_FIRE_SKIP MissedFirePolicy = "SKIP"
const MISSED_FIRE_IMMEDIATE MissedFirePolicy = "FIRE_ONCE_IMMEDIATELY"

// ScheduledJob is mutated only by the scheduler. NextFireAt is computed
// by the schedule calculator; ONCE jobs with no next time disable
// themselves.
type ScheduledJob struct {
	Id               string           `json:"id"`
	Name             string           `json:"name"`
	Spec             ScheduleSpec     `json:"spec"`
	WorkflowId       string           `json:"workflowId"`
	NextFireAt       time.Time        `json:"nextFireAt,omitempty"`
	LastFireAt       time.Time        `json:"lastFireAt,omitempty"`
	Enabled          bool             `json:"enabled"`
	MissedFirePolicy MissedFirePolicy `json:"missedFirePolicy,omitempty"`
}
