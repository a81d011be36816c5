package timers

import (
	"time"

	"github.com/RussellLuo/timingwheel"
)

// TimerManager schedules callbacks on a coarse timing wheel; the memory
// delay queue uses it to mature delayed messages.
type TimerManager struct {
	wheel *timingwheel.TimingWheel
}

func NewTimerManager(wheelSize int64) *TimerManager {
	return &TimerManager{
		wheel: timingwheel.NewTimingWheel(100*time.Millisecond, wheelSize),
	}
}

func (m *TimerManager) AddTask(delay time.Duration, task func()) {
	m.wheel.AfterFunc(delay, task)
}

func (m *TimerManager) Init() {
	m.wheel.Start()
}

func (m *TimerManager) Stop() {
	m.wheel.Stop()
}
