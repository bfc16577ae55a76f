package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"
	"github.com/use-agent/harvest/models"
)

// BadgerStore persists tasks in a badgerhold store so status survives restarts.
type BadgerStore struct {
	store *badgerhold.Store
}

// OpenBadgerStore opens (or creates) the store in dir. Values are JSON so
// free-form inputs and records round-trip without type registration.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("queue: create store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("queue: open badger store: %w", err)
	}
	return &BadgerStore{store: store}, nil
}

func (s *BadgerStore) Save(t *models.Task) error {
	if err := s.store.Upsert(t.ID, t); err != nil {
		return fmt.Errorf("queue: save task %s: %w", t.ID, err)
	}
	return nil
}

func (s *BadgerStore) Get(id string) (*models.Task, error) {
	var t models.Task
	if err := s.store.Get(id, &t); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("queue: get task %s: %w", id, err)
	}
	return &t, nil
}

func (s *BadgerStore) ListByState(state models.TaskState) ([]*models.Task, error) {
	var tasks []models.Task
	if err := s.store.Find(&tasks, badgerhold.Where("State").Eq(state)); err != nil {
		return nil, fmt.Errorf("queue: list %s tasks: %w", state, err)
	}
	out := make([]*models.Task, len(tasks))
	for i := range tasks {
		out[i] = &tasks[i]
	}
	return out, nil
}

// Durable reports that tasks outlive the process.
func (s *BadgerStore) Durable() bool { return true }

func (s *BadgerStore) Close() error {
	return s.store.Close()
}
