package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pagedSource serves fixed pages of targets.
func pagedSource(pages ...[]string) PageFunc {
	return func(_ context.Context, _ string, page int) ([]string, error) {
		if page > len(pages) {
			return nil, nil
		}
		return pages[page-1], nil
	}
}

func targets(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

// batchTracker checks that no target of batch k+1 starts before batch k resolved.
type batchTracker struct {
	size      int
	index     map[string]int
	finished  atomic.Int32
	inflight  atomic.Int32
	maxFlight atomic.Int32
	mu        sync.Mutex
	violation []string
}

func newBatchTracker(ts []string, size int) *batchTracker {
	p := &batchTracker{size: size, index: map[string]int{}}
	for i, t := range ts {
		p.index[t] = i
	}
	return p
}

func (p *batchTracker) extract(fail map[string]bool) ExtractFunc {
	return func(ctx context.Context, target string) (models.Record, error) {
		batchStart := (p.index[target] / p.size) * p.size
		if int(p.finished.Load()) < batchStart {
			p.mu.Lock()
			p.violation = append(p.violation, target)
			p.mu.Unlock()
		}
		n := p.inflight.Add(1)
		for {
			m := p.maxFlight.Load()
			if n <= m || p.maxFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		p.inflight.Add(-1)
		defer p.finished.Add(1)
		if fail[target] {
			return nil, errors.New("boom " + target)
		}
		return models.Record{"id": target}, nil
	}
}

func TestRunBatchesCountAndOrdering(t *testing.T) {
	for _, tc := range []struct{ n, b, batches int }{
		{8, 3, 3}, {6, 3, 2}, {1, 3, 1}, {10, 5, 2}, {7, 1, 7},
	} {
		t.Run(fmt.Sprintf("n=%d,b=%d", tc.n, tc.b), func(t *testing.T) {
			ts := targets(tc.n)
			tracker := newBatchTracker(ts, tc.b)
			var reports []int
			s := &Scheduler{BatchSize: tc.b}

			recs := s.RunBatches(context.Background(), ts, Job{Extract: tracker.extract(nil)}, func(done int) {
				reports = append(reports, done)
			})

			assert.Len(t, reports, tc.batches)
			assert.Equal(t, tc.n, reports[len(reports)-1])
			assert.LessOrEqual(t, int(tracker.maxFlight.Load()), tc.b)
			assert.Empty(t, tracker.violation, "a target started before its previous batch resolved")
			require.Len(t, recs, tc.n)
			for i, r := range recs {
				assert.Equal(t, ts[i], r["id"], "results are paired with their target")
			}
		})
	}
}

func TestFailureIsolation(t *testing.T) {
	ts := targets(6)
	tracker := newBatchTracker(ts, 3)
	s := &Scheduler{BatchSize: 3}

	recs := s.RunBatches(context.Background(), ts, Job{
		Extract: tracker.extract(map[string]bool{"t1": true}),
	}, nil)

	require.Len(t, recs, 6)
	assert.Equal(t, "t1", recs[1]["target"])
	assert.Equal(t, "boom t1", recs[1]["error"])
	assert.Equal(t, "t2", recs[2]["id"])
	assert.Equal(t, "t5", recs[5]["id"])
}

func TestPanicIsolatedToTarget(t *testing.T) {
	s := &Scheduler{BatchSize: 2}
	recs := s.RunBatches(context.Background(), []string{"a", "b"}, Job{
		Extract: func(_ context.Context, target string) (models.Record, error) {
			if target == "a" {
				panic("nil element")
			}
			return models.Record{"id": target}, nil
		},
	}, nil)

	require.Len(t, recs, 2)
	assert.Contains(t, recs[0]["error"], "panicked")
	assert.Equal(t, "b", recs[1]["id"])
}

func TestDroppedTargets(t *testing.T) {
	s := &Scheduler{BatchSize: 3}
	recs := s.RunBatches(context.Background(), []string{"a", "b", "c"}, Job{
		Extract: func(_ context.Context, target string) (models.Record, error) {
			if target == "b" {
				return nil, nil
			}
			return models.Record{"id": target}, nil
		},
		OnError: func(string, error) models.Record { return nil },
	}, nil)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0]["id"])
	assert.Equal(t, "c", recs[1]["id"])
}

func TestDiscoverDedupFirstSeenOrder(t *testing.T) {
	got, err := Discover(context.Background(), "x", 0, 5, pagedSource(
		[]string{"a", "b", "a", "c"},
		[]string{"c", "d", "b"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestDiscoverStopsOnEmptyPage(t *testing.T) {
	var calls int
	fetch := func(_ context.Context, _ string, page int) ([]string, error) {
		calls++
		if page == 1 {
			return []string{"a", "b"}, nil
		}
		return []string{"a"}, nil
	}
	got, err := Discover(context.Background(), "x", 10, 20, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, calls, "a page with no new targets terminates pagination")
}

func TestDiscoverCapsAndBoundsPages(t *testing.T) {
	got, err := Discover(context.Background(), "x", 3, 5, pagedSource([]string{"a", "b"}, []string{"c", "d"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = Discover(context.Background(), "x", 100, 1, pagedSource([]string{"a"}, []string{"b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestDiscoverLaterPageErrorKeepsResults(t *testing.T) {
	fetch := func(_ context.Context, _ string, page int) ([]string, error) {
		if page == 2 {
			return nil, errors.New("captcha")
		}
		return []string{"a"}, nil
	}
	got, err := Discover(context.Background(), "x", 10, 3, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	_, err = Discover(context.Background(), "x", 10, 3, func(context.Context, string, int) ([]string, error) {
		return nil, errors.New("blocked")
	})
	assert.Error(t, err)
}

func TestRunFiltersAfterExtractionAndTags(t *testing.T) {
	var discovered []string
	job := Job{
		Terms:      []string{"shoes"},
		MaxResults: 10,
		MaxPages:   2,
		Discover: func(ctx context.Context, term string, page int) ([]string, error) {
			ids := map[int][]string{1: {"p1", "p2", "p3"}, 2: {"p4"}}[page]
			discovered = append(discovered, ids...)
			return ids, nil
		},
		Extract: func(_ context.Context, target string) (models.Record, error) {
			rating := map[string]float64{"p1": 4.5, "p2": 3.0, "p3": 4.9, "p4": 2.0}[target]
			return models.Record{"id": target, "rating": rating}, nil
		},
		Keep: func(r models.Record) bool {
			v, _ := r.Float("rating")
			return v >= 4
		},
	}
	s := &Scheduler{BatchSize: 3}

	var reports []models.Progress
	recs, err := s.Run(context.Background(), job, func(p models.Progress) { reports = append(reports, p) })

	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, discovered, "filters never restrict discovery")
	require.Len(t, recs, 2)
	assert.Equal(t, "p1", recs[0]["id"])
	assert.Equal(t, "p3", recs[1]["id"])
	for _, r := range recs {
		assert.Equal(t, "shoes", r[DefaultTermKey])
	}
	// Two batches plus the end-of-term report.
	require.Len(t, reports, 3)
	assert.Equal(t, models.Progress{Processed: 4, Total: 4, Message: `finished "shoes"`}, reports[2])
}

func TestRunMultipleTermsPreservesOrder(t *testing.T) {
	job := Job{
		Terms:      []string{"a", "b"},
		MaxResults: 2,
		MaxPages:   1,
		TermKey:    "searchKeyword",
		Discover: func(_ context.Context, term string, _ int) ([]string, error) {
			return []string{term + "1", term + "2"}, nil
		},
		Extract: func(_ context.Context, target string) (models.Record, error) {
			return models.Record{"id": target}, nil
		},
	}
	recs, err := (&Scheduler{BatchSize: 3}).Run(context.Background(), job, nil)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []any{"a1", "a2", "b1", "b2"}, []any{recs[0]["id"], recs[1]["id"], recs[2]["id"], recs[3]["id"]})
	assert.Equal(t, "b", recs[3]["searchKeyword"])
}

func TestRunAllDiscoveryFailed(t *testing.T) {
	job := Job{
		Terms:    []string{"a"},
		Discover: func(context.Context, string, int) ([]string, error) { return nil, errors.New("blocked") },
		Extract:  func(context.Context, string) (models.Record, error) { return nil, nil },
	}
	_, err := (&Scheduler{BatchSize: 3}).Run(context.Background(), job, nil)
	assert.EqualError(t, err, "blocked")
}

func TestSoftDeadlineStopsNewBatches(t *testing.T) {
	ctx := WithSoftDeadline(context.Background(), time.Now().Add(-time.Second))
	assert.True(t, SoftExpired(ctx))
	assert.False(t, SoftExpired(context.Background()))

	var calls atomic.Int32
	s := &Scheduler{BatchSize: 2}
	recs := s.RunBatches(ctx, targets(6), Job{
		Extract: func(_ context.Context, target string) (models.Record, error) {
			calls.Add(1)
			return models.Record{"id": target}, nil
		},
	}, nil)

	assert.Equal(t, int32(2), calls.Load(), "only the batch already started runs")
	assert.Len(t, recs, 2)
}

func TestBatchDelayBetweenBatchesOnly(t *testing.T) {
	var slept []time.Duration
	s := &Scheduler{
		BatchSize:  2,
		BatchDelay: 500 * time.Millisecond,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	s.RunBatches(context.Background(), targets(5), Job{
		Extract: func(_ context.Context, target string) (models.Record, error) { return models.Record{}, nil },
	}, nil)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, slept)
}
