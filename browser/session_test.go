package browser

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/config"
)

type fakeCloser struct {
	name  string
	order *[]string
	err   error
}

func (f *fakeCloser) Close() error {
	*f.order = append(*f.order, f.name)
	return f.err
}

func TestRegistryClosesAllInOrder(t *testing.T) {
	var order []string
	var r registry
	a := &fakeCloser{name: "a", order: &order}
	b := &fakeCloser{name: "b", order: &order, err: errors.New("boom")}
	c := &fakeCloser{name: "c", order: &order}
	r.track(a)
	r.track(b)
	r.track(c)

	err := r.closeAll()

	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order, "a failing close does not stop the rest")
	assert.Equal(t, 0, r.len())
}

func TestRegistryUntrack(t *testing.T) {
	var order []string
	var r registry
	a := &fakeCloser{name: "a", order: &order}
	r.track(a)
	r.untrack(a)
	require.NoError(t, r.closeAll())
	assert.Empty(t, order)
}

func TestCleanupWithoutLaunch(t *testing.T) {
	cfg := config.Default()
	s := NewSession(cfg.Browser, cfg.Navigation, nil)

	var order []string
	s.contexts.track(&fakeCloser{name: "ctx", order: &order})

	require.NoError(t, s.Cleanup())
	require.NoError(t, s.Cleanup(), "second cleanup is a no-op")
	assert.Equal(t, []string{"ctx"}, order)

	err := s.Initialize(t.Context())
	assert.Error(t, err, "a cleaned up session cannot relaunch")
}

func TestFingerprintDrawsFromPool(t *testing.T) {
	cfg := config.Default().Browser
	rnd := rand.New(rand.NewPCG(1, 2))
	pool := UserAgents()
	require.GreaterOrEqual(t, len(pool), 5)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		fp := newFingerprint(rnd, cfg)
		assert.Contains(t, pool, fp.UserAgent)
		assert.Equal(t, 1920, fp.Width)
		assert.Equal(t, 1080, fp.Height)
		assert.Equal(t, "en-US", fp.Locale)
		assert.Equal(t, "America/New_York", fp.Timezone)
		seen[fp.UserAgent] = true
	}
	assert.Len(t, seen, len(pool))
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", Fingerprint{Locale: "en-US"}.AcceptLanguage())
	assert.Equal(t, "fr", Fingerprint{Locale: "fr"}.AcceptLanguage())
}
