package memory

import (
	"sync"

	"docflow/model"
	"docflow/persistence"
	"docflow/util"
)

var _ persistence.RunStorage = new(inMemoryRunStorage)

// Runs are held in encoded form. The engine keeps mutating a run's
// Context between saves, so handing out decoded copies keeps readers
// off the live maps and matches what the redis backend returns.
type inMemoryRunStorage struct {
	mu             sync.RWMutex
	runs           map[string][]byte
	history        []string
	byWorkflow     map[string][]string
	historyLimit   int
	encoderDecoder util.EncoderDecoder[model.Run]
}

func NewInMemoryRunStorage(historyLimit int) *inMemoryRunStorage {
	return &inMemoryRunStorage{
		runs:           make(map[string][]byte),
		byWorkflow:     make(map[string][]string),
		historyLimit:   historyLimit,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Run](),
	}
}

func (s *inMemoryRunStorage) Save(run *model.Run) error {
	data, err := s.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Id] = data
	return nil
}

func (s *inMemoryRunStorage) Get(id string) (*model.Run, error) {
	s.mu.RLock()
	data, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.encoderDecoder.Decode(data)
}

// Archive records a terminal run, newest first. Runs evicted from the
// global history are dropped entirely.
func (s *inMemoryRunStorage) Archive(run *model.Run) error {
	data, err := s.encoderDecoder.Encode(*run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Id] = data
	s.history = append([]string{run.Id}, s.history...)
	if len(s.history) > s.historyLimit {
		for _, evicted := range s.history[s.historyLimit:] {
			delete(s.runs, evicted)
		}
		s.history = s.history[:s.historyLimit]
	}
	wfHistory := append([]string{run.Id}, s.byWorkflow[run.WorkflowId]...)
	if len(wfHistory) > s.historyLimit {
		wfHistory = wfHistory[:s.historyLimit]
	}
	s.byWorkflow[run.WorkflowId] = wfHistory
	return nil
}

func (s *inMemoryRunStorage) List(workflowId string, limit int) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.history
	if len(workflowId) > 0 {
		ids = s.byWorkflow[workflowId]
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	out := make([]model.Run, 0, limit)
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		data, ok := s.runs[id]
		if !ok {
			// evicted from the global history
			continue
		}
		run, err := s.encoderDecoder.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, nil
}
