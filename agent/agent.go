// Package agent assembles the automation server from its parts and
// owns their startup and shutdown order.
package agent

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"docflow/action"
	"docflow/config"
	"docflow/container"
	"docflow/engine"
	"docflow/executor"
	"docflow/logger"
	"docflow/metadata"
	"docflow/model"
	"docflow/rest"
	"docflow/router"
	"docflow/rules"
	"docflow/scheduler"
	"docflow/service"
)

const defaultPollIntervalSeconds = 1
const defaultSchedulePollSeconds = 30

type Agent struct {
	Config            config.Config
	container         *container.DIContainer
	definitionService *metadata.DefinitionService
	ruleEngine        *rules.Engine
	eventRouter       *router.Router
	engine            *engine.Engine
	retryPoller       *executor.QueuePoller
	delayPoller       *executor.QueuePoller
	scheduler         *scheduler.Scheduler
	automationService *service.AutomationService
	httpServer        *rest.Server
	shutdown          bool
	shutdowns         chan struct{}
	shutdownLock      sync.Mutex
	wg                sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupPersistence,
		a.setupMetadata,
		a.setupEngine,
		a.setupScheduler,
		a.setupAutomationService,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	logger.InitLogger(a.Config.LogLevel)
	return nil
}

func (a *Agent) setupPersistence() error {
	a.container = container.NewDiContainer()
	a.container.Init(a.Config)
	return nil
}

func (a *Agent) setupMetadata() error {
	a.definitionService = metadata.NewDefinitionService(a.container.GetMetadataStorage())
	a.ruleEngine = rules.NewEngine()
	a.eventRouter = router.NewRouter()
	return nil
}

func (a *Agent) setupEngine() error {
	factory := action.NewFactory(executor.DefaultCapabilities(), a.ruleEngine, a.container.GetTrail())
	a.engine = engine.New(a.Config, a.container.GetRunStorage(), a.container.GetDelayQueue(), factory, a.container.GetTrail(), &a.wg)
	if err := a.engine.Start(); err != nil {
		return err
	}

	interval := time.Duration(a.Config.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultPollIntervalSeconds * time.Second
	}
	a.retryPoller = executor.NewQueuePoller("retry-poller", engine.RUN_RETRY_QUEUE, a.container.GetDelayQueue(), a.engine.Submit, interval, &a.wg)
	a.delayPoller = executor.NewQueuePoller("delay-poller", engine.RUN_DELAY_QUEUE, a.container.GetDelayQueue(), a.engine.Submit, interval, &a.wg)
	if err := a.retryPoller.Start(); err != nil {
		return err
	}
	return a.delayPoller.Start()
}

func (a *Agent) setupScheduler() error {
	interval := time.Duration(a.Config.SchedulePollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultSchedulePollSeconds * time.Second
	}
	a.scheduler = scheduler.New(a.container.GetMetadataStorage(), a.container.GetTrail(), interval, &a.wg)
	return nil
}

func (a *Agent) setupAutomationService() error {
	a.automationService = service.NewAutomationService(a.container, a.definitionService, a.eventRouter, a.ruleEngine, a.engine, a.scheduler, &a.wg)
	if err := a.automationService.Start(); err != nil {
		return err
	}
	// Schedule fires go through the same intake as external events.
	return a.scheduler.Start(func(ev model.Event) {
		if err := a.automationService.Submit(ev); err != nil {
			logger.Error("error submitting schedule event", zap.Error(err))
		}
	})
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.automationService)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.scheduler.Stop()
			return nil
		},
		a.automationService.Stop,
		a.retryPoller.Stop,
		a.delayPoller.Stop,
		a.engine.Stop,
		func() error {
			a.container.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
