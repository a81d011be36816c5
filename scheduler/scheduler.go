// Package scheduler owns the scheduled job set and emits ScheduleFired
// events when jobs come due.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"docflow/audit"
	"docflow/logger"
	"docflow/model"
	"docflow/persistence"
	"docflow/schedule"
)

// Scheduler runs one timer loop that wakes at the nearest fire time,
// at the poll interval at the latest. Job mutations poke the loop so
// the timer re-arms against the changed set.
type Scheduler struct {
	storage      persistence.MetadataStorage
	trail        *audit.Trail
	pollInterval time.Duration
	wg           *sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]model.ScheduledJob

	sink func(model.Event)
	wake chan struct{}
	stop chan struct{}
}

func New(storage persistence.MetadataStorage, trail *audit.Trail, pollInterval time.Duration, wg *sync.WaitGroup) *Scheduler {
	return &Scheduler{
		storage:      storage,
		trail:        trail,
		pollInterval: pollInterval,
		wg:           wg,
		jobs:         make(map[string]model.ScheduledJob),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
	}
}

// Start loads persisted jobs and begins the timer loop. Fired events
// go into the sink.
func (s *Scheduler) Start(sink func(model.Event)) error {
	jobs, err := s.storage.ListJobs()
	if err != nil {
		return fmt.Errorf("loading scheduled jobs: %w", err)
	}
	now := time.Now()
	s.mu.Lock()
	s.sink = sink
	for _, job := range jobs {
		if job.Enabled && job.NextFireAt.IsZero() {
			if next, ok := schedule.NextFireTime(job.Spec, now); ok {
				job.NextFireAt = next
			} else {
				job.Enabled = false
			}
		}
		s.jobs[job.Id] = job
	}
	s.mu.Unlock()
	s.wg.Add(1)
	go s.loop()
	logger.Info("scheduler started", zap.Int("jobs", len(jobs)), zap.Duration("pollInterval", s.pollInterval))
	return nil
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

// AddJob validates the spec, computes the first fire time and persists
// the job. Replaces an existing job with the same id.
func (s *Scheduler) AddJob(job model.ScheduledJob) error {
	if len(job.Id) == 0 {
		return fmt.Errorf("job id can not be empty")
	}
	if err := schedule.Validate(job.Spec); err != nil {
		return err
	}
	now := time.Now()
	if job.Enabled {
		next, ok := schedule.NextFireTime(job.Spec, now)
		if !ok {
			return model.InvalidScheduleSpecError{Expression: job.Spec.FireAt.String(), Reason: "fire time already passed"}
		}
		job.NextFireAt = next
	}
	if err := s.storage.SaveJob(job); err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.Id] = job
	s.mu.Unlock()
	s.poke()
	return nil
}

func (s *Scheduler) RemoveJob(id string) error {
	if err := s.storage.DeleteJob(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	s.poke()
	return nil
}

func (s *Scheduler) EnableJob(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	next, hasNext := schedule.NextFireTime(job.Spec, time.Now())
	if !hasNext {
		s.mu.Unlock()
		return fmt.Errorf("job %s schedule is exhausted", id)
	}
	job.Enabled = true
	job.NextFireAt = next
	s.jobs[id] = job
	s.mu.Unlock()
	s.poke()
	return s.storage.SaveJob(job)
}

func (s *Scheduler) DisableJob(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	job.Enabled = false
	job.NextFireAt = time.Time{}
	s.jobs[id] = job
	s.mu.Unlock()
	s.poke()
	return s.storage.SaveJob(job)
}

func (s *Scheduler) GetJob(id string) (model.ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *Scheduler) ListJobs() []model.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(s.nextWake())
		select {
		case <-s.stop:
			timer.Stop()
			logger.Info("scheduler stopped")
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			s.fireDue()
		}
	}
}

// nextWake returns the time until the nearest enabled fire, capped at
// the poll interval.
func (s *Scheduler) nextWake() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	wake := s.pollInterval
	now := time.Now()
	for _, job := range s.jobs {
		if !job.Enabled || job.NextFireAt.IsZero() {
			continue
		}
		if until := job.NextFireAt.Sub(now); until < wake {
			wake = until
		}
	}
	if wake < 0 {
		wake = 0
	}
	return wake
}

func (s *Scheduler) fireDue() {
	now := time.Now()
	var fired []model.Event
	var changed []model.ScheduledJob

	s.mu.Lock()
	for id, job := range s.jobs {
		if !job.Enabled || job.NextFireAt.IsZero() || job.NextFireAt.After(now) {
			continue
		}
		fireAt := job.NextFireAt
		missed := now.Sub(fireAt) > s.pollInterval
		if missed && job.MissedFirePolicy != model.MISSED_FIRE_IMMEDIATE {
			s.trail.RecordMissedFireSkipped(id, fireAt)
		} else {
			fired = append(fired, model.NewScheduleFiredEvent(id, job.WorkflowId, fireAt))
			job.LastFireAt = fireAt
		}
		if next, ok := schedule.NextFireTime(job.Spec, now); ok {
			job.NextFireAt = next
		} else {
			job.Enabled = false
			job.NextFireAt = time.Time{}
			s.trail.RecordJobDisabled(id, "schedule exhausted")
		}
		s.jobs[id] = job
		changed = append(changed, job)
	}
	sink := s.sink
	s.mu.Unlock()

	for _, job := range changed {
		if err := s.storage.SaveJob(job); err != nil {
			logger.Error("error persisting scheduled job", zap.String("job", job.Id), zap.Error(err))
		}
	}
	for _, ev := range fired {
		s.trail.RecordScheduleFired(ev.Schedule.JobId, ev.Schedule.FireAt)
		sink(ev)
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
