// Package service is the facade in front of the orchestration core.
// It takes events in, keeps definitions, the router, the rule registry
// and the scheduler in sync, and exposes run control.
package service

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"docflow/audit"
	"docflow/config"
	"docflow/container"
	"docflow/engine"
	"docflow/logger"
	"docflow/metadata"
	"docflow/model"
	"docflow/persistence"
	"docflow/router"
	"docflow/rules"
	"docflow/scheduler"
	"docflow/util"
)

const defaultDedupRetentionMinutes int = 60
const defaultIntakeCapacity int = 100

type Stats struct {
	EventsReceived  int64        `json:"eventsReceived"`
	EventsDuplicate int64        `json:"eventsDuplicate"`
	EventsUnmatched int64        `json:"eventsUnmatched"`
	RuleMatches     int64        `json:"ruleMatches"`
	Workflows       int          `json:"workflows"`
	Rules           int          `json:"rules"`
	Jobs            int          `json:"jobs"`
	Engine          engine.Stats `json:"engine"`
}

type AutomationService struct {
	conf      config.Config
	defs      *metadata.DefinitionService
	router    *router.Router
	ruleEng   *rules.Engine
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	dedup     persistence.DedupStore
	runs      persistence.RunStorage
	trail     *audit.Trail
	intake    *util.Worker

	eventsReceived  atomic.Int64
	eventsDuplicate atomic.Int64
	eventsUnmatched atomic.Int64
}

func NewAutomationService(d *container.DIContainer, defs *metadata.DefinitionService, rt *router.Router,
	ruleEng *rules.Engine, eng *engine.Engine, sched *scheduler.Scheduler, wg *sync.WaitGroup) *AutomationService {
	s := &AutomationService{
		conf:      d.GetConfig(),
		defs:      defs,
		router:    rt,
		ruleEng:   ruleEng,
		engine:    eng,
		scheduler: sched,
		dedup:     d.GetDedupStore(),
		runs:      d.GetRunStorage(),
		trail:     d.GetTrail(),
	}
	capacity := s.conf.ExecutorCapacity
	if capacity <= 0 {
		capacity = defaultIntakeCapacity
	}
	s.intake = util.NewWorker("event-intake", wg, s.processEvent, capacity)
	return s
}

// Start loads the stored definitions into the router and the rule
// registry and opens the event intake.
func (s *AutomationService) Start() error {
	workflows, err := s.defs.ListWorkflows()
	if err != nil {
		return err
	}
	s.router.Reload(workflows)
	ruleDefs, err := s.defs.ListRules()
	if err != nil {
		return err
	}
	s.ruleEng.Reload(ruleDefs)
	s.intake.Start()
	logger.Info("automation service started", zap.Int("workflows", len(workflows)), zap.Int("rules", len(ruleDefs)))
	return nil
}

func (s *AutomationService) Stop() error {
	s.intake.Stop()
	return nil
}

// Submit accepts an event for asynchronous processing. Acceptance means
// the event is queued, not that any run started.
func (s *AutomationService) Submit(ev model.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.intake.Sender() <- ev
	return nil
}

func (s *AutomationService) processEvent(task util.Task) error {
	ev, ok := task.(model.Event)
	if !ok {
		return fmt.Errorf("invalid task %v on event intake", task)
	}
	s.eventsReceived.Add(1)
	s.trail.RecordEventReceived(ev)

	fresh, err := s.dedup.PutIfAbsent(string(ev.Kind), ev.IdempotencyKey, s.dedupRetention())
	if err != nil {
		// A dedup store failure lets the event through.
		logger.Error("dedup store unavailable", zap.Error(err))
		fresh = true
	}
	if !fresh {
		s.eventsDuplicate.Add(1)
		s.trail.RecordEventDuplicate(ev)
		return nil
	}

	matches := s.router.Route(ev)
	if len(matches) == 0 {
		s.eventsUnmatched.Add(1)
		s.trail.RecordEventUnmatched(ev)
		return nil
	}
	for _, m := range matches {
		wf, err := s.defs.GetWorkflow(m.WorkflowId)
		if err != nil {
			logger.Error("matched workflow not loadable", zap.String("workflow", m.WorkflowId), zap.Error(err))
			continue
		}
		if _, err := s.engine.StartRun(*wf, m.TriggerId, ev); err != nil {
			logger.Error("can not start run", zap.String("workflow", m.WorkflowId), zap.Error(err))
		}
	}
	return nil
}

func (s *AutomationService) SaveWorkflow(wf model.Workflow) error {
	if err := s.defs.SaveWorkflow(wf); err != nil {
		return err
	}
	if err := s.reloadRouter(); err != nil {
		return err
	}
	s.syncScheduleJobs(wf)
	return nil
}

func (s *AutomationService) GetWorkflow(id string) (*model.Workflow, error) {
	return s.defs.GetWorkflow(id)
}

func (s *AutomationService) ListWorkflows() ([]model.Workflow, error) {
	return s.defs.ListWorkflows()
}

func (s *AutomationService) DeleteWorkflow(id string) error {
	if _, err := s.defs.GetWorkflow(id); err != nil {
		return err
	}
	if err := s.defs.DeleteWorkflow(id); err != nil {
		return err
	}
	if err := s.reloadRouter(); err != nil {
		return err
	}
	s.syncScheduleJobs(model.Workflow{Id: id})
	return nil
}

func (s *AutomationService) SetWorkflowEnabled(id string, enabled bool) error {
	wf, err := s.defs.SetWorkflowEnabled(id, enabled)
	if err != nil {
		return err
	}
	if err := s.reloadRouter(); err != nil {
		return err
	}
	s.syncScheduleJobs(*wf)
	return nil
}

func (s *AutomationService) SaveRule(rule model.Rule) error {
	if err := s.defs.SaveRule(rule); err != nil {
		return err
	}
	return s.ruleEng.Register(rule)
}

func (s *AutomationService) GetRule(id string) (*model.Rule, error) {
	return s.defs.GetRule(id)
}

func (s *AutomationService) ListRules() ([]model.Rule, error) {
	return s.defs.ListRules()
}

func (s *AutomationService) DeleteRule(id string) error {
	if err := s.defs.DeleteRule(id); err != nil {
		return err
	}
	s.ruleEng.Unregister(id)
	return nil
}

func (s *AutomationService) SetRuleEnabled(id string, enabled bool) error {
	rule, err := s.defs.GetRule(id)
	if err != nil {
		return err
	}
	rule.Enabled = enabled
	if err := s.defs.SaveRule(*rule); err != nil {
		return err
	}
	return s.ruleEng.Register(*rule)
}

func (s *AutomationService) AddJob(job model.ScheduledJob) error {
	return s.scheduler.AddJob(job)
}

func (s *AutomationService) GetJob(id string) (model.ScheduledJob, bool) {
	return s.scheduler.GetJob(id)
}

func (s *AutomationService) ListJobs() []model.ScheduledJob {
	return s.scheduler.ListJobs()
}

func (s *AutomationService) RemoveJob(id string) error {
	return s.scheduler.RemoveJob(id)
}

func (s *AutomationService) EnableJob(id string) error {
	return s.scheduler.EnableJob(id)
}

func (s *AutomationService) DisableJob(id string) error {
	return s.scheduler.DisableJob(id)
}

func (s *AutomationService) GetRun(id string) (*model.Run, error) {
	return s.engine.GetRun(id)
}

func (s *AutomationService) ListRuns(workflowId string, limit int) ([]model.Run, error) {
	return s.runs.List(workflowId, limit)
}

func (s *AutomationService) CancelRun(id string) error {
	return s.engine.Cancel(id)
}

func (s *AutomationService) Stats() Stats {
	workflows, _ := s.defs.ListWorkflows()
	ruleDefs, _ := s.defs.ListRules()
	return Stats{
		EventsReceived:  s.eventsReceived.Load(),
		EventsDuplicate: s.eventsDuplicate.Load(),
		EventsUnmatched: s.eventsUnmatched.Load(),
		RuleMatches:     s.ruleEng.Matched(),
		Workflows:       len(workflows),
		Rules:           len(ruleDefs),
		Jobs:            len(s.scheduler.ListJobs()),
		Engine:          s.engine.Stats(),
	}
}

func (s *AutomationService) reloadRouter() error {
	workflows, err := s.defs.ListWorkflows()
	if err != nil {
		return err
	}
	s.router.Reload(workflows)
	return nil
}

// syncScheduleJobs keeps one job per schedule trigger under the id
// workflowId:triggerId, which is the id the router binds such triggers
// to. Jobs for triggers the workflow no longer declares are removed;
// manually registered jobs are left alone.
func (s *AutomationService) syncScheduleJobs(wf model.Workflow) {
	current := make(map[string]bool)
	for _, trig := range wf.Triggers {
		if trig.Kind != model.EVENT_SCHEDULE_FIRED || trig.Schedule == nil {
			continue
		}
		jobId := wf.Id + ":" + trig.Id
		current[jobId] = true
		job := model.ScheduledJob{
			Id:         jobId,
			Name:       wf.Name + " / " + trig.Id,
			Spec:       *trig.Schedule,
			WorkflowId: wf.Id,
			Enabled:    wf.Enabled,
		}
		if err := s.scheduler.AddJob(job); err != nil {
			logger.Error("can not register schedule trigger job", zap.String("job", jobId), zap.Error(err))
		}
	}
	prefix := wf.Id + ":"
	for _, job := range s.scheduler.ListJobs() {
		if job.WorkflowId == wf.Id && strings.HasPrefix(job.Id, prefix) && !current[job.Id] {
			if err := s.scheduler.RemoveJob(job.Id); err != nil {
				logger.Error("can not remove stale trigger job", zap.String("job", job.Id), zap.Error(err))
			}
		}
	}
}

func (s *AutomationService) dedupRetention() time.Duration {
	minutes := s.conf.DedupRetentionMinutes
	if minutes <= 0 {
		minutes = defaultDedupRetentionMinutes
	}
	return time.Duration(minutes) * time.Minute
}
