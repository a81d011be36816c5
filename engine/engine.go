// Package engine drives workflow runs. Requests for a run always land
// on the same partition worker, so a run executes strictly serially
// while different runs proceed in parallel. Retries and delays leave
// the worker and come back through the delay queue.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docflow/action"
	"docflow/audit"
	"docflow/config"
	"docflow/logger"
	"docflow/model"
	"docflow/persistence"
	"docflow/util"
)

const RUN_RETRY_QUEUE string = "run_retry"
const RUN_DELAY_QUEUE string = "run_delay"

const defaultWorkerCount int = 4
const defaultCapacity int = 100
const defaultRetryCount int = 3
const defaultRetryAfterSeconds int = 5
const defaultActionTimeoutSeconds int = 60
const defaultQueueDepth int = 16

// gate serializes runs of an EXCLUSIVE workflow. The active run holds
// the gate; later runs wait in pending, FIFO, bounded by the configured
// queue depth.
type gate struct {
	active  string
	pending []string
}

type Stats struct {
	RunsStarted      int64 `json:"runsStarted"`
	RunsQueued       int64 `json:"runsQueued"`
	RunsDropped      int64 `json:"runsDropped"`
	RunsSucceeded    int64 `json:"runsSucceeded"`
	RunsFailed       int64 `json:"runsFailed"`
	RunsCancelled    int64 `json:"runsCancelled"`
	RetriesScheduled int64 `json:"retriesScheduled"`
	LiveRuns         int   `json:"liveRuns"`
}

type Engine struct {
	conf    config.Config
	runs    persistence.RunStorage
	delayQ  persistence.DelayQueue
	factory *action.Factory
	trail   *audit.Trail

	partitioner *Partitioner
	workers     []*util.Worker
	encDec      util.EncoderDecoder[model.RunExecutionRequest]

	mu    sync.Mutex
	live  map[string]*model.Run
	gates map[string]*gate

	started   atomic.Int64
	queued    atomic.Int64
	dropped   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	retries   atomic.Int64
}

func New(conf config.Config, runs persistence.RunStorage, delayQ persistence.DelayQueue, factory *action.Factory, trail *audit.Trail, wg *sync.WaitGroup) *Engine {
	workerCount := conf.WorkerCount
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	capacity := conf.ExecutorCapacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	e := &Engine{
		conf:        conf,
		runs:        runs,
		delayQ:      delayQ,
		factory:     factory,
		trail:       trail,
		partitioner: NewPartitioner(workerCount),
		encDec:      util.NewJsonEncoderDecoder[model.RunExecutionRequest](),
		live:        make(map[string]*model.Run),
		gates:       make(map[string]*gate),
	}
	for i := 0; i < workerCount; i++ {
		e.workers = append(e.workers, util.NewWorker(fmt.Sprintf("run-worker-%d", i), wg, e.process, capacity))
	}
	return e
}

func (e *Engine) Start() error {
	for _, w := range e.workers {
		w.Start()
	}
	logger.Info("engine started", zap.Int("workers", len(e.workers)))
	return nil
}

func (e *Engine) Stop() error {
	for _, w := range e.workers {
		w.Stop()
	}
	return nil
}

// StartRun admits one run of the workflow. The run starts out PENDING;
// execution proceeds asynchronously on the run's partition worker. For
// an EXCLUSIVE workflow the run may instead wait behind the active run,
// and when the wait queue is full the oldest waiter is dropped and
// archived as CANCELLED.
func (e *Engine) StartRun(wf model.Workflow, triggerId string, ev model.Event) (*model.Run, error) {
	run := &model.Run{
		Id:           uuid.New().String(),
		WorkflowId:   wf.Id,
		WorkflowName: wf.Name,
		TriggerId:    triggerId,
		Event:        ev,
		Context:      map[string]any{"event": ev.Data()},
		Pipeline:     append([]model.ActionDef{}, wf.Actions...),
		Policy:       wf.Policy,
		OnFailure:    wf.OnFailure,
		State:        model.RUN_STATE_PENDING,
		StartedAt:    time.Now(),
	}
	if err := e.runs.Save(run); err != nil {
		return nil, err
	}

	dispatch := true
	var droppedRun *model.Run
	e.mu.Lock()
	e.live[run.Id] = run
	if run.Policy == model.CONCURRENCY_EXCLUSIVE {
		g := e.gates[run.WorkflowId]
		if g == nil {
			g = &gate{}
			e.gates[run.WorkflowId] = g
		}
		if len(g.active) == 0 {
			g.active = run.Id
		} else {
			dispatch = false
			g.pending = append(g.pending, run.Id)
			if len(g.pending) > e.queueDepth() {
				droppedId := g.pending[0]
				g.pending = g.pending[1:]
				droppedRun = e.live[droppedId]
				delete(e.live, droppedId)
			}
		}
	}
	e.mu.Unlock()

	e.started.Add(1)
	e.trail.RecordRunStarted(run.Id, run.WorkflowName, triggerId)
	if droppedRun != nil {
		e.dropQueued(droppedRun)
	}
	if !dispatch {
		e.queued.Add(1)
		e.trail.RecordRunQueued(run.Id, run.WorkflowName)
		return run, nil
	}
	return run, e.Submit(model.RunExecutionRequest{RunId: run.Id, Type: model.RUN_EXECUTION_NEW})
}

// Submit routes an execution request to the worker owning the run's
// partition. The queue pollers feed retry and delay requests back in
// through here.
func (e *Engine) Submit(req model.RunExecutionRequest) error {
	e.workers[e.partitioner.Partition(req.RunId)].Sender() <- req
	return nil
}

// Cancel stops a run. A run still waiting behind an exclusive gate
// cancels immediately; a running or retrying run stops before its next
// action executes. Terminal runs can not be cancelled.
func (e *Engine) Cancel(runId string) error {
	e.mu.Lock()
	run, ok := e.live[runId]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("run %s not found or already finished", runId)
	}
	run.CancelRequested = true
	waiting := false
	if run.Policy == model.CONCURRENCY_EXCLUSIVE && run.State == model.RUN_STATE_PENDING {
		if g, found := e.gates[run.WorkflowId]; found && g.active != runId {
			for i, id := range g.pending {
				if id == runId {
					g.pending = append(g.pending[:i], g.pending[i+1:]...)
					waiting = true
					break
				}
			}
			if waiting {
				delete(e.live, runId)
			}
		}
	}
	e.mu.Unlock()

	e.trail.RecordRunCancelled(runId)
	if waiting {
		e.finish(run, model.RUN_STATE_CANCELLED, "cancelled while queued")
	}
	return nil
}

func (e *Engine) GetRun(runId string) (*model.Run, error) {
	run, err := e.runs.Get(runId)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runId)
	}
	return run, nil
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	liveRuns := len(e.live)
	e.mu.Unlock()
	return Stats{
		RunsStarted:      e.started.Load(),
		RunsQueued:       e.queued.Load(),
		RunsDropped:      e.dropped.Load(),
		RunsSucceeded:    e.succeeded.Load(),
		RunsFailed:       e.failed.Load(),
		RunsCancelled:    e.cancelled.Load(),
		RetriesScheduled: e.retries.Load(),
		LiveRuns:         liveRuns,
	}
}

func (e *Engine) process(task util.Task) error {
	req, ok := task.(model.RunExecutionRequest)
	if !ok {
		return fmt.Errorf("invalid task %v on run worker", task)
	}
	return e.execute(req)
}

func (e *Engine) execute(req model.RunExecutionRequest) error {
	run, err := e.lookup(req)
	if err != nil {
		return err
	}
	if run == nil {
		logger.Debug("dropping stale execution request", zap.String("run", req.RunId), zap.String("type", string(req.Type)))
		return nil
	}
	if e.consumeCancel(run) {
		e.finish(run, model.RUN_STATE_CANCELLED, "cancelled by request")
		return nil
	}

	e.setState(run, model.RUN_STATE_RUNNING)
	run.Attempt = req.Attempt
	e.persist(run)

	attempt := req.Attempt
	for {
		if e.consumeCancel(run) {
			e.finish(run, model.RUN_STATE_CANCELLED, "cancelled by request")
			return nil
		}
		if run.Position >= len(run.Pipeline) {
			e.finish(run, model.RUN_STATE_SUCCEEDED, "")
			return nil
		}

		def := run.Pipeline[run.Position]
		startedAt := time.Now()
		res, actErr := e.runAction(run, def)
		finishedAt := time.Now()

		if actErr != nil {
			if !e.handleFailure(run, def, attempt, startedAt, finishedAt, actErr) {
				return nil
			}
			attempt = 0
			continue
		}

		run.ActionResults = append(run.ActionResults, model.ActionResult{
			Ordinal:    run.Position,
			Name:       def.Name,
			Type:       def.Type,
			Attempts:   attempt + 1,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Status:     model.ACTION_STATUS_SUCCESS,
		})
		run.Attempt = 0
		if len(res.Output) > 0 {
			run.Context[outputKey(def, run.Position)] = res.Output
		}
		e.trail.RecordActionSuccess(run.Id, run.WorkflowName, def.Name, run.Position, res.Output)

		if len(res.Inject) > 0 {
			run.Pipeline = spliceActions(run.Pipeline, run.Position, res.Inject)
		}

		if res.Delay > 0 {
			run.Position++
			e.persist(run)
			resume := model.RunExecutionRequest{RunId: run.Id, Position: run.Position, Type: model.RUN_EXECUTION_RESUME}
			if parkErr := e.park(RUN_DELAY_QUEUE, resume, res.Delay); parkErr != nil {
				e.finish(run, model.RUN_STATE_FAILED, fmt.Sprintf("can not park delayed run: %v", parkErr))
			}
			return nil
		}

		if res.Event == model.BRANCH_ABORT {
			e.trail.RecordRunAborted(run.Id, def.Name)
			e.finish(run, model.RUN_STATE_SUCCEEDED, "")
			return nil
		}
		if len(res.Event) > 0 {
			pos, found := findLabel(run.Pipeline, res.Event)
			if !found {
				e.finish(run, model.RUN_STATE_FAILED, fmt.Sprintf("branch target label %q not found in pipeline", res.Event))
				return nil
			}
			run.Position = pos
		} else {
			run.Position++
		}
		attempt = 0
		e.persist(run)
	}
}

// lookup resolves the request to its live run. Runs fall out of the
// live map on restart; a run reloaded from storage re-acquires its
// exclusive gate or re-enters the wait queue.
func (e *Engine) lookup(req model.RunExecutionRequest) (*model.Run, error) {
	e.mu.Lock()
	run, ok := e.live[req.RunId]
	e.mu.Unlock()
	if ok {
		if run.State.Terminal() {
			return nil, nil
		}
		return run, nil
	}

	stored, err := e.runs.Get(req.RunId)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.State.Terminal() {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if reloaded, found := e.live[req.RunId]; found {
		return reloaded, nil
	}
	e.live[stored.Id] = stored
	if stored.Policy == model.CONCURRENCY_EXCLUSIVE {
		g := e.gates[stored.WorkflowId]
		if g == nil {
			g = &gate{}
			e.gates[stored.WorkflowId] = g
		}
		if len(g.active) == 0 {
			g.active = stored.Id
		} else if g.active != stored.Id {
			g.pending = append(g.pending, stored.Id)
			return nil, nil
		}
	}
	return stored, nil
}

func (e *Engine) runAction(run *model.Run, def model.ActionDef) (action.Result, error) {
	resolved, err := util.ResolveParams(run.Context, def.Parameters)
	if err != nil {
		return action.Result{}, err
	}
	act, err := e.factory.Build(def)
	if err != nil {
		return action.Result{}, model.NewFatalError(err)
	}
	timeout := e.actionTimeout(def)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	res, err := act.Execute(ctx, run.Id, resolved, run.Context)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return res, model.NewRetryableError(fmt.Errorf("action %s timed out after %s: %w", def.Name, timeout, err))
		}
		return res, err
	}
	return res, nil
}

// handleFailure schedules a retry, routes to the failure handler or
// finishes the run. It returns true when the loop should continue at
// the failure handler.
func (e *Engine) handleFailure(run *model.Run, def model.ActionDef, attempt int, startedAt time.Time, finishedAt time.Time, actErr error) bool {
	retryable := model.IsRetryable(actErr)
	e.trail.RecordActionFailure(run.Id, run.WorkflowName, def.Name, run.Position, actErr.Error())

	if retryable && attempt+1 < e.retryCount(def) {
		next := attempt + 1
		delay := e.retryDelay(def, next)
		e.setState(run, model.RUN_STATE_RETRYING)
		run.Attempt = next
		e.persist(run)
		req := model.RunExecutionRequest{RunId: run.Id, Position: run.Position, Attempt: next, Type: model.RUN_EXECUTION_RETRY}
		if parkErr := e.park(RUN_RETRY_QUEUE, req, delay); parkErr != nil {
			logger.Error("can not schedule retry", zap.String("run", run.Id), zap.Error(parkErr))
		} else {
			e.retries.Add(1)
			e.trail.RecordRetryScheduled(run.Id, def.Name, next, delay)
			return false
		}
	}

	run.ActionResults = append(run.ActionResults, model.ActionResult{
		Ordinal:    run.Position,
		Name:       def.Name,
		Type:       def.Type,
		Attempts:   attempt + 1,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Status:     model.ACTION_STATUS_FAILED,
		Error:      actErr.Error(),
	})

	if len(run.OnFailure) > 0 && !run.FailureHandled {
		if pos, found := findLabel(run.Pipeline, run.OnFailure); found {
			run.FailureHandled = true
			run.Context["error"] = map[string]any{
				"action":  def.Name,
				"message": actErr.Error(),
			}
			run.Position = pos
			e.persist(run)
			e.trail.RecordFailureRouted(run.Id, run.OnFailure)
			return true
		}
	}

	e.finish(run, model.RUN_STATE_FAILED, actErr.Error())
	return false
}

// finish archives the terminal run and, for an exclusive workflow,
// hands the gate to the oldest waiting run.
func (e *Engine) finish(run *model.Run, state model.RunState, errMsg string) {
	e.setState(run, state)
	run.FinishedAt = time.Now()
	run.Error = errMsg
	if err := e.runs.Archive(run); err != nil {
		logger.Error("can not archive run", zap.String("run", run.Id), zap.Error(err))
	}
	switch state {
	case model.RUN_STATE_SUCCEEDED:
		e.succeeded.Add(1)
	case model.RUN_STATE_FAILED:
		e.failed.Add(1)
	case model.RUN_STATE_CANCELLED:
		e.cancelled.Add(1)
	}
	e.trail.RecordRunFinished(run.Id, run.WorkflowName, state, errMsg)

	var next *model.Run
	e.mu.Lock()
	delete(e.live, run.Id)
	if run.Policy == model.CONCURRENCY_EXCLUSIVE {
		if g, ok := e.gates[run.WorkflowId]; ok && g.active == run.Id {
			g.active = ""
			for len(g.pending) > 0 && next == nil {
				candidate := g.pending[0]
				g.pending = g.pending[1:]
				next = e.live[candidate]
			}
			if next != nil {
				g.active = next.Id
			} else if len(g.pending) == 0 {
				delete(e.gates, run.WorkflowId)
			}
		}
	}
	e.mu.Unlock()

	if next != nil {
		req := model.RunExecutionRequest{RunId: next.Id, Type: model.RUN_EXECUTION_NEW}
		// The next run may hash to this same worker, so hand it over
		// off-thread instead of blocking on our own task channel.
		go func() {
			if err := e.Submit(req); err != nil {
				logger.Error("can not dispatch queued run", zap.String("run", req.RunId), zap.Error(err))
			}
		}()
	}
}

func (e *Engine) dropQueued(run *model.Run) {
	e.setState(run, model.RUN_STATE_CANCELLED)
	run.FinishedAt = time.Now()
	run.Error = "dropped from exclusive wait queue"
	if err := e.runs.Archive(run); err != nil {
		logger.Error("can not archive dropped run", zap.String("run", run.Id), zap.Error(err))
	}
	e.dropped.Add(1)
	e.trail.RecordRunDropped(run.Id, run.WorkflowName)
}

func (e *Engine) park(queueName string, req model.RunExecutionRequest, delay time.Duration) error {
	msg, err := e.encDec.Encode(req)
	if err != nil {
		return err
	}
	return e.delayQ.PushWithDelay(queueName, delay, msg)
}

func (e *Engine) persist(run *model.Run) {
	if err := e.runs.Save(run); err != nil {
		logger.Error("can not persist run state", zap.String("run", run.Id), zap.Error(err))
	}
}

func (e *Engine) setState(run *model.Run, state model.RunState) {
	e.mu.Lock()
	run.State = state
	e.mu.Unlock()
}

func (e *Engine) consumeCancel(run *model.Run) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return run.CancelRequested
}

func (e *Engine) retryCount(def model.ActionDef) int {
	if def.RetryCount > 0 {
		return def.RetryCount
	}
	if e.conf.RetryCount > 0 {
		return e.conf.RetryCount
	}
	return defaultRetryCount
}

// retryDelay computes the wait before the given attempt. BACKOFF is
// the default and doubles the base per attempt, FIXED keeps it flat.
func (e *Engine) retryDelay(def model.ActionDef, attempt int) time.Duration {
	base := def.RetryAfterSeconds
	if base <= 0 {
		base = e.conf.RetryAfterSeconds
	}
	if base <= 0 {
		base = defaultRetryAfterSeconds
	}
	seconds := base
	if def.RetryPolicy != model.RETRY_POLICY_FIXED && attempt > 1 {
		seconds = base << (attempt - 1)
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) actionTimeout(def model.ActionDef) time.Duration {
	seconds := def.TimeoutSeconds
	if seconds <= 0 {
		seconds = e.conf.ActionTimeoutSeconds
	}
	if seconds <= 0 {
		seconds = defaultActionTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) queueDepth() int {
	if e.conf.ExclusiveQueueDepth > 0 {
		return e.conf.ExclusiveQueueDepth
	}
	return defaultQueueDepth
}

func outputKey(def model.ActionDef, position int) string {
	if len(def.OutputKey) > 0 {
		return def.OutputKey
	}
	return fmt.Sprintf("action_%d", position)
}

func findLabel(pipeline []model.ActionDef, label string) (int, bool) {
	for i, a := range pipeline {
		if a.Label == label {
			return i, true
		}
	}
	return 0, false
}

func spliceActions(pipeline []model.ActionDef, pos int, injected []model.ActionDef) []model.ActionDef {
	out := make([]model.ActionDef, 0, len(pipeline)+len(injected))
	out = append(out, pipeline[:pos+1]...)
	out = append(out, injected...)
	out = append(out, pipeline[pos+1:]...)
	return out
}
