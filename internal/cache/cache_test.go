package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
)

// countingRefresher counts refreshes and can block them to let tests
// pile up concurrent readers.
type countingRefresher struct {
	calls int64
	gate  chan struct{}
	prevs []*model.Record
	mu    sync.Mutex
}

func (r *countingRefresher) Refresh(ctx context.Context, cat model.Category, prev *model.Record) *model.Record {
	if r.gate != nil {
		<-r.gate
	}
	n := atomic.AddInt64(&r.calls, 1)

	r.mu.Lock()
	r.prevs = append(r.prevs, prev)
	r.mu.Unlock()

	return model.NewRecord(map[string]any{"refresh": n}, model.SourceLive, false)
}

func testConfig() config.Config {
	return config.Config{
		NetworkTTL: time.Minute,
		TokenTTL:   time.Minute,
		StakingTTL: time.Minute,
		AssetsTTL:  time.Minute,
	}
}

func TestGetRefreshesOnceWhileFresh(t *testing.T) {
	refresher := &countingRefresher{}
	layer := New(refresher, testConfig())

	first := layer.Get(context.Background(), model.CategoryNetwork)
	second := layer.Get(context.Background(), model.CategoryNetwork)

	require.NotNil(t, first)
	assert.Same(t, first, second, "fresh record must be served from cache")
	assert.EqualValues(t, 1, atomic.LoadInt64(&refresher.calls))
}

func TestGetRefreshesAfterTTL(t *testing.T) {
	cfg := testConfig()
	cfg.TokenTTL = 10 * time.Millisecond

	refresher := &countingRefresher{}
	layer := New(refresher, cfg)

	layer.Get(context.Background(), model.CategoryToken)
	time.Sleep(30 * time.Millisecond)
	layer.Get(context.Background(), model.CategoryToken)

	assert.EqualValues(t, 2, atomic.LoadInt64(&refresher.calls))
}

func TestConcurrentReadersShareOneRefresh(t *testing.T) {
	refresher := &countingRefresher{gate: make(chan struct{})}
	layer := New(refresher, testConfig())

	const readers = 10
	records := make([]*model.Record, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i] = layer.Get(context.Background(), model.CategoryStaking)
		}(i)
	}

	// Let the readers queue up on the in-flight refresh, then release it.
	time.Sleep(20 * time.Millisecond)
	close(refresher.gate)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&refresher.calls),
		"concurrent readers of an expired category must share one refresh")
	for i := 1; i < readers; i++ {
		assert.Same(t, records[0], records[i])
	}
}

func TestInvalidateForcesRefreshButKeepsLastKnown(t *testing.T) {
	refresher := &countingRefresher{}
	layer := New(refresher, testConfig())

	first := layer.Get(context.Background(), model.CategoryBIMAnalysis)
	layer.Invalidate(model.CategoryBIMAnalysis)

	assert.Same(t, first, layer.Peek(model.CategoryBIMAnalysis),
		"invalidation must not drop the last known record")

	layer.Get(context.Background(), model.CategoryBIMAnalysis)
	assert.EqualValues(t, 2, atomic.LoadInt64(&refresher.calls))

	refresher.mu.Lock()
	defer refresher.mu.Unlock()
	require.Len(t, refresher.prevs, 2)
	assert.Nil(t, refresher.prevs[0])
	assert.Same(t, first, refresher.prevs[1],
		"the refresh after invalidation must see the previous record")
}

func TestPeekNeverRefreshes(t *testing.T) {
	refresher := &countingRefresher{}
	layer := New(refresher, testConfig())

	assert.Nil(t, layer.Peek(model.CategoryAssets))
	assert.EqualValues(t, 0, atomic.LoadInt64(&refresher.calls))
}
