// Package scheduler triggers the daily snapshot refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/robfig/cron/v3"
)

type Refresher interface {
	Refresh(ctx context.Context) (*model.DailySnapshot, error)
}

type RefreshScheduler struct {
	cron      *cron.Cron
	refresher Refresher
	loc       *time.Location
	timeout   time.Duration
	log       *slog.Logger
}

// NewRefreshScheduler parses spec (standard five-field cron) in loc. Each tick refreshes today's
// snapshot, giving up after timeout.
func NewRefreshScheduler(spec string, loc *time.Location, refresher Refresher, timeout time.Duration,
	log *slog.Logger) (*RefreshScheduler, error) {
	s := &RefreshScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{log: log}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: log})),
		),
		refresher: refresher,
		loc:       loc,
		timeout:   timeout,
		log:       log,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *RefreshScheduler) Start() {
	s.log.Info("starting refresh scheduler.", slog.Time("next", s.Next()))
	s.cron.Start()
}

// Stop prevents new ticks and waits for a running refresh to finish or for ctx to be done.
func (s *RefreshScheduler) Stop(ctx context.Context) {
	s.log.Info("stopping refresh scheduler.")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("refresh still running at shutdown.")
	}
}

func (s *RefreshScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.loc))
}

func (s *RefreshScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	snapshot, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.log.Error("scheduled refresh failed.", slog.String("err", err.Error()))
		return
	}
	s.log.Info("scheduled refresh done.", slog.String("date", snapshot.Date),
		slog.Int("mosques", len(snapshot.Results)))
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{slog.String("err", err.Error())}, keysAndValues...)...)
}
