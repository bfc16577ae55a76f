package scheduler

import (
	"context"
	"log/slog"
)

// PageFunc returns the targets found on one result page of term. page starts at 1.
type PageFunc func(ctx context.Context, term string, page int) ([]string, error)

// OrderedSet keeps the first occurrence of each target in insertion order.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

// NewOrderedSet returns an empty set.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{seen: make(map[string]struct{})}
}

// Add inserts id unless it is empty or already present, reporting whether it was new.
func (s *OrderedSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = struct{}{}
	s.items = append(s.items, id)
	return true
}

// AddAll inserts ids in order and returns how many were new.
func (s *OrderedSet) AddAll(ids []string) int {
	added := 0
	for _, id := range ids {
		if s.Add(id) {
			added++
		}
	}
	return added
}

// Len returns the number of unique targets.
func (s *OrderedSet) Len() int { return len(s.items) }

// Items returns the first n targets (all when n <= 0).
func (s *OrderedSet) Items(n int) []string {
	if n <= 0 || n >= len(s.items) {
		out := make([]string, len(s.items))
		copy(out, s.items)
		return out
	}
	out := make([]string, n)
	copy(out, s.items[:n])
	return out
}

// Discover paginates term from page 1 until maxResults unique targets are
// collected, maxPages pages were read, or a page adds nothing new. The result
// is capped at maxResults. A failed first page is returned as an error; a
// later failure ends pagination with what was collected so far.
func Discover(ctx context.Context, term string, maxResults, maxPages int, fetch PageFunc) ([]string, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	set := NewOrderedSet()
	for page := 1; page <= maxPages; page++ {
		if maxResults > 0 && set.Len() >= maxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return set.Items(maxResults), err
		}
		ids, err := fetch(ctx, term, page)
		if err != nil {
			if set.Len() == 0 {
				return nil, err
			}
			slog.Warn("discovery page failed, keeping earlier pages", "term", term, "page", page, "error", err)
			break
		}
		added := set.AddAll(ids)
		slog.Debug("discovery page", "term", term, "page", page, "found", len(ids), "new", added, "total", set.Len())
		if added == 0 {
			break
		}
	}
	return set.Items(maxResults), nil
}
