package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = models.NewScrapeError(models.ErrCodeNotFound, "task not found", nil)

// Store persists tasks. Implementations store and return copies, so callers
// may keep mutating the task they passed in.
type Store interface {
	Save(t *models.Task) error
	Get(id string) (*models.Task, error)
	ListByState(state models.TaskState) ([]*models.Task, error)
	Close() error
}

// OpenStore returns the store selected by cfg.Backend.
func OpenStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "badger":
		return OpenBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("queue: unknown store backend %q", cfg.Backend)
	}
}

// MemoryStore keeps tasks in a map and forgets finished ones after ttl.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore starts the retention sweeper when ttl > 0.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		tasks: make(map[string]*models.Task),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop(max(ttl/10, time.Second))
	}
	return s
}

func (s *MemoryStore) Save(t *models.Task) error {
	cp := *t
	s.mu.Lock()
	s.tasks[t.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(id string) (*models.Task, error) {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListByState(state models.TaskState) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Task
	for _, t := range s.tasks {
		if t.State == state {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// sweep drops terminal tasks finished more than ttl ago.
func (s *MemoryStore) sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tasks {
		if t.State.Terminal() && t.FinishedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				slog.Debug("expired tasks removed", "count", n)
			}
		}
	}
}
