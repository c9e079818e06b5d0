package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/metrics"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore is the durable tier: one snapshot per date.
type SnapshotStore interface {
	Load(ctx context.Context, date string) (*model.DailySnapshot, error)
	Save(ctx context.Context, snapshot *model.DailySnapshot) error
}

type Runner interface {
	RunAll(ctx context.Context, date time.Time) (*model.DailySnapshot, error)
}

// Publisher is told about every snapshot a run produced.
type Publisher interface {
	Publish(snapshot *model.DailySnapshot)
}

// DailyCache serves snapshots by calendar date. Lookups go memory, then store, then a scrape
// run. At most one run per date is in flight; concurrent callers share its result.
type DailyCache struct {
	store     SnapshotStore
	runner    Runner
	memory    *gocache.Cache
	group     singleflight.Group
	loc       *time.Location
	log       *slog.Logger
	publisher Publisher
	now       func() time.Time

	mu      sync.RWMutex
	current *model.DailySnapshot
}

func NewDailyCache(store SnapshotStore, runner Runner, cfg *config.CacheConfig, loc *time.Location,
	log *slog.Logger) *DailyCache {
	return &DailyCache{
		store:  store,
		runner: runner,
		memory: gocache.New(cfg.MemoryTtl, time.Hour),
		loc:    loc,
		log:    log,
		now:    time.Now,
	}
}

func (c *DailyCache) SetPublisher(p Publisher) {
	c.publisher = p
}

// Today is the current calendar day in the cache's time zone, at midnight.
func (c *DailyCache) Today() time.Time {
	return c.day(c.now())
}

// Get returns the snapshot for date and whether it came from a cache tier. A missing snapshot is
// produced by a scrape run, which outlives ctx: callers that give up do not cancel it for the rest.
func (c *DailyCache) Get(ctx context.Context, date time.Time) (*model.DailySnapshot, bool, error) {
	date = c.day(date)
	key := date.Format(model.DateLayout)

	if s, ok := c.memory.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("memory").Inc()
		return s.(*model.DailySnapshot), true, nil
	}
	s, err := c.store.Load(ctx, key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("store").Inc()
		c.remember(s)
		return s, true, nil
	case !errors.Is(err, ErrNotFound):
		c.log.Error("failed to load snapshot.", slog.String("date", key), slog.String("err", err.Error()))
		return nil, false, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	metrics.CacheLookups.WithLabelValues("miss").Inc()
	s, err = c.regenerate(ctx, date, "request", false)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// Refresh scrapes today again and supersedes the stored snapshot. Safe to call repeatedly and
// concurrently: calls that overlap a run in flight share it.
func (c *DailyCache) Refresh(ctx context.Context) (*model.DailySnapshot, error) {
	return c.RefreshDate(ctx, c.Today())
}

func (c *DailyCache) RefreshDate(ctx context.Context, date time.Time) (*model.DailySnapshot, error) {
	return c.regenerate(ctx, c.day(date), "refresh", true)
}

// Current is the latest snapshot for today, or nil before the first one exists.
func (c *DailyCache) Current() *model.DailySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Warm makes today's snapshot current at startup: from the store when it has one, otherwise by
// running a scrape.
func (c *DailyCache) Warm(ctx context.Context) error {
	s, fromCache, err := c.Get(ctx, c.Today())
	if err != nil {
		return err
	}
	c.log.Info("daily cache warmed.", slog.String("date", s.Date), slog.Bool("fromCache", fromCache))
	return nil
}

func (c *DailyCache) regenerate(ctx context.Context, date time.Time, trigger string,
	force bool) (*model.DailySnapshot, error) {
	key := date.Format(model.DateLayout)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		runCtx := context.WithoutCancel(ctx)
		if !force {
			// another process may have stored it since the miss
			if s, err := c.store.Load(runCtx, key); err == nil {
				c.remember(s)
				return s, nil
			}
		}
		c.log.Info("regenerating snapshot.", slog.String("date", key), slog.String("trigger", trigger))
		s, err := c.runner.RunAll(runCtx, date)
		if err != nil {
			metrics.SnapshotRegenerations.WithLabelValues(trigger, "error").Inc()
			return nil, fmt.Errorf("scrape %s: %w", key, err)
		}
		metrics.SnapshotRegenerations.WithLabelValues(trigger, "ok").Inc()
		c.remember(s)
		if c.publisher != nil {
			c.publisher.Publish(s)
		}
		if err = c.store.Save(runCtx, s); err != nil {
			c.log.Error("failed to save snapshot.", slog.String("date", key), slog.String("err", err.Error()))
			return nil, fmt.Errorf("save snapshot %s: %w", key, err)
		}
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.DailySnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// remember puts s in the memory tier and makes it current when it is today's.
func (c *DailyCache) remember(s *model.DailySnapshot) {
	c.memory.Set(s.Date, s, gocache.DefaultExpiration)
	if s.Date != c.Today().Format(model.DateLayout) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Date != s.Date || !s.UpdatedAt.Before(c.current.UpdatedAt) {
		c.current = s
	}
}

func (c *DailyCache) day(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}
