// Package audit writes the automation audit trail: every event,
// routing decision, run transition and rule match lands as one JSON
// line in a rotated file.
package audit

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"docflow/config"
	"docflow/model"
	"docflow/rules"
)

type Trail struct {
	logger *zap.Logger
}

// NewTrail builds a file-backed trail. An empty file name disables
// recording, which tests rely on.
func NewTrail(conf config.AuditConfig) *Trail {
	if len(conf.FileName) == 0 {
		return &Trail{logger: zap.NewNop()}
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   conf.FileName,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
	})
	core := zapcore.NewCore(fileEncoder, writer, zapcore.DebugLevel)
	return &Trail{logger: zap.New(core)}
}

func (t *Trail) RecordEventReceived(ev model.Event) {
	t.logger.Info("event received", zap.String("kind", string(ev.Kind)), zap.String("key", ev.IdempotencyKey))
}

func (t *Trail) RecordEventDuplicate(ev model.Event) {
	t.logger.Info("event deduplicated", zap.String("kind", string(ev.Kind)), zap.String("key", ev.IdempotencyKey))
}

func (t *Trail) RecordEventUnmatched(ev model.Event) {
	t.logger.Debug("event unmatched", zap.String("kind", string(ev.Kind)), zap.String("key", ev.IdempotencyKey))
}

func (t *Trail) RecordRunStarted(runId string, wfName string, triggerId string) {
	t.logger.Info("run started", zap.String("run", runId), zap.String("name", wfName), zap.String("trigger", triggerId))
}

func (t *Trail) RecordRunQueued(runId string, wfName string) {
	t.logger.Info("run queued", zap.String("run", runId), zap.String("name", wfName))
}

func (t *Trail) RecordRunDropped(runId string, wfName string) {
	t.logger.Warn("run dropped from queue", zap.String("run", runId), zap.String("name", wfName))
}

func (t *Trail) RecordActionSuccess(runId string, wfName string, actionName string, position int, output map[string]any) {
	t.logger.Info("action success", zap.String("run", runId), zap.String("name", wfName), zap.String("action", actionName), zap.Int("position", position), zap.Any("output", output))
}

func (t *Trail) RecordActionFailure(runId string, wfName string, actionName string, position int, reason string) {
	t.logger.Info("action failure", zap.String("run", runId), zap.String("name", wfName), zap.String("action", actionName), zap.Int("position", position), zap.String("reason", reason))
}

func (t *Trail) RecordRetryScheduled(runId string, actionName string, attempt int, delay time.Duration) {
	t.logger.Info("retry scheduled", zap.String("run", runId), zap.String("action", actionName), zap.Int("attempt", attempt), zap.Duration("delay", delay))
}

func (t *Trail) RecordBranch(runId string, actionName string, outcome bool, target string) {
	t.logger.Info("branch evaluated", zap.String("run", runId), zap.String("action", actionName), zap.Bool("outcome", outcome), zap.String("target", target))
}

func (t *Trail) RecordRunAborted(runId string, actionName string) {
	t.logger.Info("run aborted by branch", zap.String("run", runId), zap.String("action", actionName))
}

func (t *Trail) RecordFailureRouted(runId string, label string) {
	t.logger.Info("failure routed", zap.String("run", runId), zap.String("label", label))
}

func (t *Trail) RecordRulesMatched(runId string, matches []rules.Match) {
	t.logger.Info("rules matched", zap.String("run", runId), zap.Any("matches", matches))
}

func (t *Trail) RecordRunFinished(runId string, wfName string, state model.RunState, errMsg string) {
	t.logger.Info("run finished", zap.String("run", runId), zap.String("name", wfName), zap.String("state", string(state)), zap.String("error", errMsg))
}

func (t *Trail) RecordRunCancelled(runId string) {
	t.logger.Info("run cancelled", zap.String("run", runId))
}

func (t *Trail) RecordScheduleFired(jobId string, fireAt time.Time) {
	t.logger.Info("schedule fired", zap.String("job", jobId), zap.Time("fireAt", fireAt))
}

func (t *Trail) RecordMissedFireSkipped(jobId string, missedAt time.Time) {
	t.logger.Info("missed fire skipped", zap.String("job", jobId), zap.Time("missedAt", missedAt))
}

func (t *Trail) RecordJobDisabled(jobId string, reason string) {
	t.logger.Info("job disabled", zap.String("job", jobId), zap.String("reason", reason))
}
