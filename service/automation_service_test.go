package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docflow/action"
	"docflow/config"
	"docflow/container"
	"docflow/engine"
	"docflow/executor"
	"docflow/metadata"
	"docflow/model"
	"docflow/router"
	"docflow/rules"
	"docflow/scheduler"
)

type svcHarness struct {
	svc   *AutomationService
	sched *scheduler.Scheduler
}

func newSvcHarness(t *testing.T) *svcHarness {
	t.Helper()
	conf := config.Config{
		StorageType:           config.STORAGE_TYPE_INMEM,
		WorkerCount:           2,
		ExecutorCapacity:      16,
		DedupRetentionMinutes: 1,
		RetryCount:            2,
		RetryAfterSeconds:     1,
		ActionTimeoutSeconds:  5,
		ExclusiveQueueDepth:   4,
	}
	wg := &sync.WaitGroup{}
	d := container.NewDiContainer()
	d.Init(conf)
	defs := metadata.NewDefinitionService(d.GetMetadataStorage())
	rt := router.NewRouter()
	ruleEng := rules.NewEngine()
	factory := action.NewFactory(executor.Capabilities{}, ruleEng, d.GetTrail())
	eng := engine.New(conf, d.GetRunStorage(), d.GetDelayQueue(), factory, d.GetTrail(), wg)
	sched := scheduler.New(d.GetMetadataStorage(), d.GetTrail(), 200*time.Millisecond, wg)
	svc := NewAutomationService(d, defs, rt, ruleEng, eng, sched, wg)

	require.NoError(t, eng.Start())
	require.NoError(t, svc.Start())
	require.NoError(t, sched.Start(func(ev model.Event) {
		_ = svc.Submit(ev)
	}))
	t.Cleanup(func() {
		sched.Stop()
		_ = svc.Stop()
		_ = eng.Stop()
		d.Stop()
		wg.Wait()
	})
	return &svcHarness{svc: svc, sched: sched}
}

func (h *svcHarness) waitRuns(t *testing.T, workflowId string, count int) []model.Run {
	t.Helper()
	var runs []model.Run
	require.Eventually(t, func() bool {
		var err error
		runs, err = h.svc.ListRuns(workflowId, 10)
		if err != nil {
			return false
		}
		for _, r := range runs {
			if !r.State.Terminal() {
				return false
			}
		}
		return len(runs) == count
	}, 5*time.Second, 20*time.Millisecond, "expected %d terminal runs for %s", count, workflowId)
	return runs
}

func pdfWorkflow(id string) model.Workflow {
	return model.Workflow{
		Id:      id,
		Name:    id,
		Enabled: true,
		Policy:  model.CONCURRENCY_PARALLEL,
		Triggers: []model.Trigger{
			{Id: "t-files", Kind: model.EVENT_FILE_ADDED, Extensions: []string{"pdf"}},
		},
		Actions: []model.ActionDef{
			{Name: "note", Type: model.ACTION_TYPE_RUN_SCRIPT, Expression: `({seen: $.event.path})`, OutputKey: "note"},
		},
	}
}

func TestEventRoutesAndRuns(t *testing.T) {
	h := newSvcHarness(t)
	require.NoError(t, h.svc.SaveWorkflow(pdfWorkflow("wf-notes")))

	require.NoError(t, h.svc.Submit(model.NewFileAddedEvent("inbox/a.pdf", 100, "c1")))

	runs := h.waitRuns(t, "wf-notes", 1)
	require.Equal(t, model.RUN_STATE_SUCCEEDED, runs[0].State)
	note, ok := runs[0].Context["note"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "inbox/a.pdf", note["seen"])

	stats := h.svc.Stats()
	require.EqualValues(t, 1, stats.EventsReceived)
	require.EqualValues(t, 1, stats.Workflows)
	require.EqualValues(t, 1, stats.Engine.RunsSucceeded)
}

func TestDuplicateEventStartsNoSecondRun(t *testing.T) {
	h := newSvcHarness(t)
	require.NoError(t, h.svc.SaveWorkflow(pdfWorkflow("wf-dedup")))

	ev := model.NewFileAddedEvent("inbox/b.pdf", 100, "c1")
	require.NoError(t, h.svc.Submit(ev))
	h.waitRuns(t, "wf-dedup", 1)

	require.NoError(t, h.svc.Submit(ev))
	require.Eventually(t, func() bool {
		return h.svc.Stats().EventsDuplicate == 1
	}, 2*time.Second, 20*time.Millisecond)

	runs, err := h.svc.ListRuns("wf-dedup", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestUnmatchedEventStartsNothing(t *testing.T) {
	h := newSvcHarness(t)
	require.NoError(t, h.svc.SaveWorkflow(pdfWorkflow("wf-pdf-only")))

	require.NoError(t, h.svc.Submit(model.NewFileAddedEvent("inbox/letter.docx", 100, "c1")))
	require.Eventually(t, func() bool {
		return h.svc.Stats().EventsUnmatched == 1
	}, 2*time.Second, 20*time.Millisecond)

	runs, err := h.svc.ListRuns("wf-pdf-only", 10)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestDisabledWorkflowIsNotRouted(t *testing.T) {
	h := newSvcHarness(t)
	require.NoError(t, h.svc.SaveWorkflow(pdfWorkflow("wf-toggle")))
	require.NoError(t, h.svc.SetWorkflowEnabled("wf-toggle", false))

	require.NoError(t, h.svc.Submit(model.NewFileAddedEvent("inbox/c.pdf", 100, "c1")))
	require.Eventually(t, func() bool {
		return h.svc.Stats().EventsUnmatched == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, h.svc.SetWorkflowEnabled("wf-toggle", true))
	require.NoError(t, h.svc.Submit(model.NewFileAddedEvent("inbox/d.pdf", 100, "c2")))
	h.waitRuns(t, "wf-toggle", 1)
}

func TestScheduleTriggerRegistersJob(t *testing.T) {
	h := newSvcHarness(t)

	wf := pdfWorkflow("wf-nightly")
	wf.Triggers = append(wf.Triggers, model.Trigger{
		Id:       "nightly",
		Kind:     model.EVENT_SCHEDULE_FIRED,
		Schedule: &model.ScheduleSpec{Type: model.SCHEDULE_INTERVAL, IntervalSeconds: 3600},
	})
	require.NoError(t, h.svc.SaveWorkflow(wf))

	job, ok := h.svc.GetJob("wf-nightly:nightly")
	require.True(t, ok)
	require.Equal(t, "wf-nightly", job.WorkflowId)
	require.True(t, job.Enabled)
	require.False(t, job.NextFireAt.IsZero())

	// Dropping the trigger on the next save removes its job.
	wf.Triggers = wf.Triggers[:1]
	require.NoError(t, h.svc.SaveWorkflow(wf))
	_, ok = h.svc.GetJob("wf-nightly:nightly")
	require.False(t, ok)
}

func TestDeleteWorkflowRemovesItsJobs(t *testing.T) {
	h := newSvcHarness(t)

	wf := pdfWorkflow("wf-gone")
	wf.Triggers = append(wf.Triggers, model.Trigger{
		Id:       "sweep",
		Kind:     model.EVENT_SCHEDULE_FIRED,
		Schedule: &model.ScheduleSpec{Type: model.SCHEDULE_INTERVAL, IntervalSeconds: 600},
	})
	require.NoError(t, h.svc.SaveWorkflow(wf))
	_, ok := h.svc.GetJob("wf-gone:sweep")
	require.True(t, ok)

	require.NoError(t, h.svc.DeleteWorkflow("wf-gone"))
	_, ok = h.svc.GetJob("wf-gone:sweep")
	require.False(t, ok)
	_, err := h.svc.GetWorkflow("wf-gone")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestScheduleTriggerFiresWorkflow(t *testing.T) {
	h := newSvcHarness(t)

	wf := model.Workflow{
		Id:      "wf-once",
		Name:    "one shot",
		Enabled: true,
		Policy:  model.CONCURRENCY_PARALLEL,
		Triggers: []model.Trigger{
			{
				Id:       "kick",
				Kind:     model.EVENT_SCHEDULE_FIRED,
				Schedule: &model.ScheduleSpec{Type: model.SCHEDULE_ONCE, FireAt: time.Now().Add(600 * time.Millisecond)},
			},
		},
		Actions: []model.ActionDef{
			{Name: "mark", Type: model.ACTION_TYPE_RUN_SCRIPT, Expression: `({firedBy: $.event.jobId})`, OutputKey: "mark"},
		},
	}
	require.NoError(t, h.svc.SaveWorkflow(wf))

	runs := h.waitRuns(t, "wf-once", 1)
	require.Equal(t, model.RUN_STATE_SUCCEEDED, runs[0].State)
	mark, ok := runs[0].Context["mark"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "wf-once:kick", mark["firedBy"])

	// A one shot schedule disables its job after firing.
	job, ok := h.svc.GetJob("wf-once:kick")
	require.True(t, ok)
	require.False(t, job.Enabled)
}

func TestRuleToggleChangesInjection(t *testing.T) {
	h := newSvcHarness(t)

	wf := pdfWorkflow("wf-ruled")
	wf.Actions = []model.ActionDef{
		{Name: "apply-rules", Type: model.ACTION_TYPE_EVALUATE_RULES},
		{Name: "wrap-up", Type: model.ACTION_TYPE_RUN_SCRIPT, Expression: `({done: true})`, OutputKey: "done"},
	}
	require.NoError(t, h.svc.SaveWorkflow(wf))
	require.NoError(t, h.svc.SaveRule(model.Rule{
		Id:        "r-flag",
		Name:      "flag everything",
		Enabled:   true,
		Condition: model.Condition{Field: "event.size", Operator: model.OP_GT, Value: 0},
		Actions: []model.ActionDef{
			{Name: "injected", Type: model.ACTION_TYPE_RUN_SCRIPT, Expression: `({flag: true})`, OutputKey: "injected"},
		},
	}))

	require.NoError(t, h.svc.Submit(model.NewFileAddedEvent("inbox/e.pdf", 100, "c1")))
	runs := h.waitRuns(t, "wf-ruled", 1)
	require.Len(t, runs[0].ActionResults, 3)

	require.NoError(t, h.svc.SetRuleEnabled("r-flag", false))
	require.NoError(t, h.svc.Submit(model.NewFileAddedEvent("inbox/f.pdf", 100, "c2")))
	runs = h.waitRuns(t, "wf-ruled", 2)

	// Newest first: the second run saw no enabled rules.
	require.Len(t, runs[0].ActionResults, 2)
	require.Len(t, runs[1].ActionResults, 3)
}

func TestSubmitRejectsMalformedEvent(t *testing.T) {
	h := newSvcHarness(t)
	err := h.svc.Submit(model.Event{Kind: model.EVENT_FILE_ADDED, IdempotencyKey: "k"})
	require.Error(t, err)
	require.EqualValues(t, 0, h.svc.Stats().EventsReceived)
}

func TestJobLifecycleThroughService(t *testing.T) {
	h := newSvcHarness(t)
	require.NoError(t, h.svc.SaveWorkflow(pdfWorkflow("wf-target")))

	job := model.ScheduledJob{
		Id:         "cleanup-job",
		Name:       "cleanup",
		WorkflowId: "wf-target",
		Enabled:    true,
		Spec:       model.ScheduleSpec{Type: model.SCHEDULE_INTERVAL, IntervalSeconds: 3600},
	}
	require.NoError(t, h.svc.AddJob(job))

	listed := h.svc.ListJobs()
	require.Len(t, listed, 1)
	require.NoError(t, h.svc.DisableJob("cleanup-job"))
	got, ok := h.svc.GetJob("cleanup-job")
	require.True(t, ok)
	require.False(t, got.Enabled)
	require.True(t, got.NextFireAt.IsZero())

	require.NoError(t, h.svc.EnableJob("cleanup-job"))
	got, _ = h.svc.GetJob("cleanup-job")
	require.True(t, got.Enabled)

	require.NoError(t, h.svc.RemoveJob("cleanup-job"))
	_, ok = h.svc.GetJob("cleanup-job")
	require.False(t, ok)
	require.Error(t, h.svc.EnableJob("cleanup-job"))
}

func TestRunHistoryLimitAcrossRuns(t *testing.T) {
	h := newSvcHarness(t)
	require.NoError(t, h.svc.SaveWorkflow(pdfWorkflow("wf-many")))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.svc.Submit(model.NewFileAddedEvent(fmt.Sprintf("inbox/m-%d.pdf", i), 100, fmt.Sprintf("c%d", i))))
	}
	runs := h.waitRuns(t, "wf-many", 3)
	for _, r := range runs {
		require.Equal(t, model.RUN_STATE_SUCCEEDED, r.State)
	}
	limited, err := h.svc.ListRuns("wf-many", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}
