package schedule

import (
	"testing"
	"time"

	"docflow/model"
	"github.com/stretchr/testify/require"
)

func TestNextFireTime(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"daily cron fires next morning":    testDailyCron,
		"cron sequence strictly increases": testCronIncreasing,
		"cron steps and lists":             testCronSteps,
		"dom and dow combine with or":      testCronDomDowOr,
		"interval adds to reference":       testInterval,
		"once fires only in the future":    testOnce,
	} {
		t.Run(scenario, fn)
	}
}

func testDailyCron(t *testing.T) {
	spec := model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "0 8 * * *"}
	after := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	next, ok := NextFireTime(spec, after)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), next)
}

func testCronIncreasing(t *testing.T) {
	spec := model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "*/10 2,14 * * *"}
	after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		next, ok := NextFireTime(spec, after)
		require.True(t, ok)
		require.True(t, next.After(after), "fire %d not after reference", i)
		after = next
	}
}

func testCronSteps(t *testing.T) {
	spec := model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "*/15 * * * *"}
	after := time.Date(2024, 1, 1, 10, 7, 0, 0, time.UTC)
	next, ok := NextFireTime(spec, after)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC), next)

	spec = model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "30 9-17 * * 1-5"}
	after = time.Date(2024, 1, 5, 17, 45, 0, 0, time.UTC) // friday evening
	next, ok = NextFireTime(spec, after)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC), next)
}

func testCronDomDowOr(t *testing.T) {
	// restricted dom (1st) and dow (monday): fires on either
	spec := model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "0 0 1 * 1"}
	after := time.Date(2024, 1, 7, 0, 30, 0, 0, time.UTC) // sunday jan 7
	next, ok := NextFireTime(spec, after)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), next, "monday wins over feb 1st")
}

func testInterval(t *testing.T) {
	spec := model.ScheduleSpec{Type: model.SCHEDULE_INTERVAL, IntervalSeconds: 300}
	after := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	next, ok := NextFireTime(spec, after)
	require.True(t, ok)
	require.Equal(t, after.Add(5*time.Minute), next)
}

func testOnce(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	spec := model.ScheduleSpec{Type: model.SCHEDULE_ONCE, FireAt: at}

	next, ok := NextFireTime(spec, at.Add(-time.Hour))
	require.True(t, ok)
	require.Equal(t, at, next)

	_, ok = NextFireTime(spec, at)
	require.False(t, ok)
	_, ok = NextFireTime(spec, at.Add(time.Hour))
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(model.ScheduleSpec{Type: model.SCHEDULE_CRON, Expression: "0 8 * * *"}))
	require.NoError(t, Validate(model.ScheduleSpec{Type: model.SCHEDULE_INTERVAL, IntervalSeconds: 60}))
	require.NoError(t, Validate(model.ScheduleSpec{Type: model.SCHEDULE_ONCE, FireAt: time.Now().Add(time.Hour)}))

	for name, spec := range map[string]model.ScheduleSpec{
		"minute out of range": {Type: model.SCHEDULE_CRON, Expression: "61 * * * *"},
		"too few fields":      {Type: model.SCHEDULE_CRON, Expression: "* * *"},
		"garbage expression":  {Type: model.SCHEDULE_CRON, Expression: "soon"},
		"zero interval":       {Type: model.SCHEDULE_INTERVAL, IntervalSeconds: 0},
		"once without time":   {Type: model.SCHEDULE_ONCE},
		"unknown type":        {Type: "SOMETIMES"},
	} {
		t.Run(name, func(t *testing.T) {
			err := Validate(spec)
			require.Error(t, err)
			require.IsType(t, model.InvalidScheduleSpecError{}, err)
		})
	}
}
