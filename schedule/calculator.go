package schedule

import (
	"fmt"
	"time"

	"docflow/model"
	"github.com/robfig/cron/v3"
)

// 5-field cron: minute hour day-of-month month day-of-week, with the
// standard rule that a restricted dom and dow combine with OR.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate rejects malformed specs at registration time; evaluation
// never re-validates.
func Validate(spec model.ScheduleSpec) error {
	switch spec.Type {
	case model.SCHEDULE_CRON:
		if _, err := cronParser.Parse(spec.Expression); err != nil {
			return model.InvalidScheduleSpecError{Expression: spec.Expression, Reason: err.Error()}
		}
	case model.SCHEDULE_INTERVAL:
		if spec.IntervalSeconds <= 0 {
			return model.InvalidScheduleSpecError{
				Expression: fmt.Sprintf("every %ds", spec.IntervalSeconds),
				Reason:     "interval must be positive",
			}
		}
	case model.SCHEDULE_ONCE:
		if spec.FireAt.IsZero() {
			return model.InvalidScheduleSpecError{Expression: "once", Reason: "fire time not set"}
		}
	default:
		return model.InvalidScheduleSpecError{Expression: string(spec.Type), Reason: "unknown schedule type"}
	}
	return nil
}

// NextFireTime computes the earliest fire time strictly after the
// reference time. The second return is false when the spec will never
// fire again; ONCE jobs then disable themselves.
func NextFireTime(spec model.ScheduleSpec, after time.Time) (time.Time, bool) {
	switch spec.Type {
	case model.SCHEDULE_CRON:
		sched, err := cronParser.Parse(spec.Expression)
		if err != nil {
			return time.Time{}, false
		}
		next := sched.Next(after)
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	case model.SCHEDULE_INTERVAL:
		return after.Add(time.Duration(spec.IntervalSeconds) * time.Second), true
	case model.SCHEDULE_ONCE:
		if spec.FireAt.After(after) {
			return spec.FireAt, true
		}
	}
	return time.Time{}, false
}
