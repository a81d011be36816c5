// Package container wires the storage implementations selected by
// config and hands them out to the rest of the system.
package container

import (
	"docflow/audit"
	"docflow/config"
	"docflow/persistence"
	"docflow/persistence/memory"
	rd "docflow/persistence/redis"
	"docflow/timers"
)

const defaultHistoryLimit int = 100

type DIContainer struct {
	initialized     bool
	conf            config.Config
	metadataStorage persistence.MetadataStorage
	runStorage      persistence.RunStorage
	delayQueue      persistence.DelayQueue
	dedupStore      persistence.DedupStore
	trail           *audit.Trail
	timerManager    *timers.TimerManager
}

func NewDiContainer() *DIContainer {
	return &DIContainer{
		initialized: false,
	}
}

func (d *DIContainer) setInitialized() {
	d.initialized = true
}

func (d *DIContainer) Init(conf config.Config) {
	defer d.setInitialized()
	d.conf = conf
	d.trail = audit.NewTrail(conf.AuditConfig)

	historyLimit := conf.RunHistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	switch conf.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rdConf := rd.Config{
			Addrs:     conf.RedisConfig.Addrs,
			Namespace: conf.RedisConfig.Namespace,
		}
		d.metadataStorage = rd.NewRedisMetadataStorage(rdConf)
		d.runStorage = rd.NewRedisRunStorage(rdConf, historyLimit)
		d.delayQueue = rd.NewRedisDelayQueue(rdConf)
		d.dedupStore = rd.NewRedisDedupStore(rdConf)
	default:
		// The memory delay queue matures messages on a shared wheel.
		d.timerManager = timers.NewTimerManager(128)
		d.timerManager.Init()
		d.metadataStorage = memory.NewInMemoryMetadataStorage()
		d.runStorage = memory.NewInMemoryRunStorage(historyLimit)
		d.delayQueue = memory.NewInMemoryDelayQueue(d.timerManager)
		d.dedupStore = memory.NewInMemoryDedupStore()
	}
}

func (d *DIContainer) Stop() {
	if d.timerManager != nil {
		d.timerManager.Stop()
	}
}

func (d *DIContainer) GetConfig() config.Config {
	return d.conf
}

func (d *DIContainer) GetMetadataStorage() persistence.MetadataStorage {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.metadataStorage
}

func (d *DIContainer) GetRunStorage() persistence.RunStorage {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.runStorage
}

func (d *DIContainer) GetDelayQueue() persistence.DelayQueue {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.delayQueue
}

func (d *DIContainer) GetDedupStore() persistence.DedupStore {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.dedupStore
}

func (d *DIContainer) GetTrail() *audit.Trail {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.trail
}
