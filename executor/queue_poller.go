package executor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"docflow/logger"
	"docflow/model"
	"docflow/persistence"
	"docflow/util"
)

var _ Executor = new(QueuePoller)

// QueuePoller drains one delay queue every tick and hands matured
// execution requests back to the engine. Retry and delay traffic each
// run their own poller.
type QueuePoller struct {
	name      string
	queueName string
	delayQ    persistence.DelayQueue
	sender    func(model.RunExecutionRequest) error
	encDec    util.EncoderDecoder[model.RunExecutionRequest]
	interval  time.Duration
	stop      chan struct{}
	wg        *sync.WaitGroup
}

func NewQueuePoller(name string, queueName string, delayQ persistence.DelayQueue,
	sender func(model.RunExecutionRequest) error, interval time.Duration, wg *sync.WaitGroup) *QueuePoller {
	return &QueuePoller{
		name:      name,
		queueName: queueName,
		delayQ:    delayQ,
		sender:    sender,
		encDec:    util.NewJsonEncoderDecoder[model.RunExecutionRequest](),
		interval:  interval,
		stop:      make(chan struct{}),
		wg:        wg,
	}
}

func (ex *QueuePoller) Name() string {
	return ex.name
}

func (ex *QueuePoller) Start() error {
	fn := func() {
		res, err := ex.delayQ.Pop(ex.queueName)
		if err != nil {
			logger.Error("error while polling delay queue", zap.String("queue", ex.queueName), zap.Error(err))
			return
		}
		for _, r := range res {
			req, err := ex.encDec.Decode([]byte(r))
			if err != nil {
				logger.Error("can not decode execution request", zap.String("queue", ex.queueName), zap.Error(err))
				continue
			}
			if err := ex.sender(*req); err != nil {
				logger.Error("error re-dispatching execution request", zap.String("run", req.RunId), zap.Error(err))
			}
		}
	}
	tw := util.NewTickWorker(ex.name, ex.interval, ex.stop, fn, ex.wg)
	tw.Start()
	logger.Info("queue poller started", zap.String("name", ex.name), zap.String("queue", ex.queueName))
	return nil
}

func (ex *QueuePoller) Stop() error {
	ex.stop <- struct{}{}
	return nil
}
