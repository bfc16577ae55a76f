package browser

import (
	"errors"
	"sync"
)

type closer interface {
	Close() error
}

// registry tracks resources that must be closed before their owner.
type registry struct {
	mu    sync.Mutex
	items []closer
}

func (r *registry) track(c closer) {
	r.mu.Lock()
	r.items = append(r.items, c)
	r.mu.Unlock()
}

func (r *registry) untrack(c closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item == c {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// closeAll closes every tracked item in creation order and empties the registry.
// All items are attempted even if some fail.
func (r *registry) closeAll() error {
	r.mu.Lock()
	items := r.items
	r.items = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range items {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
