package memory

import (
	"sync"
	"time"

	"docflow/persistence"
	"docflow/timers"
)

var _ persistence.DelayQueue = new(inMemoryDelayQueue)

// inMemoryDelayQueue holds matured messages per queue; delayed
// messages sit on the timing wheel until due.
type inMemoryDelayQueue struct {
	mu     sync.Mutex
	due    map[string][]string
	timers *timers.TimerManager
}

func NewInMemoryDelayQueue(tm *timers.TimerManager) *inMemoryDelayQueue {
	return &inMemoryDelayQueue{
		due:    make(map[string][]string),
		timers: tm,
	}
}

func (q *inMemoryDelayQueue) Push(queueName string, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.due[queueName] = append(q.due[queueName], string(message))
	return nil
}

func (q *inMemoryDelayQueue) PushWithDelay(queueName string, delay time.Duration, message []byte) error {
	if delay <= 0 {
		return q.Push(queueName, message)
	}
	q.timers.AddTask(delay, func() {
		q.Push(queueName, message)
	})
	return nil
}

func (q *inMemoryDelayQueue) Pop(queueName string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs := q.due[queueName]
	if len(msgs) == 0 {
		return []string{}, nil
	}
	delete(q.due, queueName)
	return msgs, nil
}
