package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type memStore struct {
	mu      sync.Mutex
	data    map[string]*model.DailySnapshot
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]*model.DailySnapshot)}
}

func (m *memStore) Load(_ context.Context, date string) (*model.DailySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	s, ok := m.data[date]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memStore) Save(_ context.Context, s *model.DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[s.Date] = s
	return nil
}

type countingRunner struct {
	runs    atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (r *countingRunner) RunAll(_ context.Context, date time.Time) (*model.DailySnapshot, error) {
	r.runs.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	d := &model.MosqueDescriptor{ID: "kmwa", Name: "KMWA", URL: "https://kmwa.example"}
	e := model.Extraction{Jamaah: model.PrayerTimeSet{model.Fajr: "05:30"}}
	return &model.DailySnapshot{
		Date:      date.Format(model.DateLayout),
		Results:   []model.MosqueResult{model.NewMosqueResult(d, e, time.Now())},
		UpdatedAt: time.Now(),
	}, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	dates []string
}

func (p *recordingPublisher) Publish(s *model.DailySnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dates = append(p.dates, s.Date)
}

var testNow = time.Date(2025, time.November, 15, 9, 30, 0, 0, time.UTC)

func newTestCache(store SnapshotStore, runner Runner) *DailyCache {
	c := NewDailyCache(store, runner, &config.CacheConfig{MemoryTtl: time.Hour}, time.UTC, testLog)
	c.now = func() time.Time { return testNow }
	return c
}

func TestGetIsIdempotent(t *testing.T) {
	runner := &countingRunner{}
	store := newMemStore()
	c := newTestCache(store, runner)

	first, fromCache, err := c.Get(context.Background(), testNow)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "2025-11-15", first.Date)

	second, fromCache, err := c.Get(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, first.Results, second.Results)
	assert.EqualValues(t, 1, runner.runs.Load())

	_, err = store.Load(context.Background(), "2025-11-15")
	assert.NoError(t, err, "snapshot must be persisted")
	assert.Same(t, first, c.Current())
}

func TestGetServesStoredSnapshot(t *testing.T) {
	runner := &countingRunner{}
	store := newMemStore()
	stored := &model.DailySnapshot{Date: "2025-11-14", Results: []model.MosqueResult{}}
	require.NoError(t, store.Save(context.Background(), stored))
	c := newTestCache(store, runner)

	s, fromCache, err := c.Get(context.Background(), testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Same(t, stored, s)
	assert.Zero(t, runner.runs.Load())
	assert.Nil(t, c.Current(), "yesterday is not current")
}

func TestConcurrentMissesRunOnce(t *testing.T) {
	runner := &countingRunner{started: make(chan struct{}, 2), release: make(chan struct{})}
	c := newTestCache(newMemStore(), runner)

	var wg sync.WaitGroup
	got := make([]*model.DailySnapshot, 2)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _, err := c.Get(context.Background(), testNow)
			assert.NoError(t, err)
			got[i] = s
		}()
	}
	<-runner.started
	time.Sleep(20 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.EqualValues(t, 1, runner.runs.Load())
	require.NotNil(t, got[0])
	assert.Same(t, got[0], got[1])
}

func TestRefreshSupersedesAndPublishes(t *testing.T) {
	runner := &countingRunner{}
	pub := &recordingPublisher{}
	c := newTestCache(newMemStore(), runner)
	c.SetPublisher(pub)

	first, _, err := c.Get(context.Background(), testNow)
	require.NoError(t, err)
	refreshed, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, refreshed)
	assert.Same(t, refreshed, c.Current())
	assert.EqualValues(t, 2, runner.runs.Load())
	assert.Equal(t, []string{"2025-11-15", "2025-11-15"}, pub.dates)

	s, fromCache, err := c.Get(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Same(t, refreshed, s)
}

func TestRunFailureIsReturned(t *testing.T) {
	runner := &countingRunner{err: errors.New("chrome not found")}
	c := newTestCache(newMemStore(), runner)

	_, _, err := c.Get(context.Background(), testNow)
	assert.ErrorContains(t, err, "chrome not found")
	assert.Nil(t, c.Current())
}

func TestStoreErrors(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("disk on fire")
	c := newTestCache(store, &countingRunner{})

	_, _, err := c.Get(context.Background(), testNow)
	assert.ErrorContains(t, err, "disk on fire")

	store = newMemStore()
	store.saveErr = errors.New("read-only file system")
	c = newTestCache(store, &countingRunner{})
	_, _, err = c.Get(context.Background(), testNow)
	assert.ErrorContains(t, err, "read-only file system")
}

func TestWarm(t *testing.T) {
	runner := &countingRunner{}
	c := newTestCache(newMemStore(), runner)

	require.NoError(t, c.Warm(context.Background()))
	require.NotNil(t, c.Current())
	assert.Equal(t, "2025-11-15", c.Current().Date)

	require.NoError(t, c.Warm(context.Background()))
	assert.EqualValues(t, 1, runner.runs.Load())
}

func TestCallerCancellationDoesNotCancelRun(t *testing.T) {
	runner := &countingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := newTestCache(newMemStore(), runner)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.Get(ctx, testNow)
		errCh <- err
	}()
	<-runner.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(runner.release)
	s, _, err := c.Get(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-15", s.Date)
	assert.EqualValues(t, 1, runner.runs.Load())
}
