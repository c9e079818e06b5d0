package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/crawler"
	"github.com/IliaW/jamaah-scrape-worker/internal/extractor"
	"github.com/IliaW/jamaah-scrape-worker/internal/metrics"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/persistence"
	"github.com/IliaW/jamaah-scrape-worker/internal/registry"
	"github.com/google/uuid"
)

// Renderer is a rendering session: one browser shared by every HTML source of a run.
type Renderer interface {
	Render(ctx context.Context, url string) (*extractor.Page, error)
	Close()
}

type OpenSession func(ctx context.Context) (Renderer, error)

type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// BrowserSessions opens a headless browser session per run.
func BrowserSessions(b *crawler.Browser) OpenSession {
	return func(ctx context.Context) (Renderer, error) {
		s, err := b.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ScrapeWorker runs every registered mosque through its extractor, one source at a time.
type ScrapeWorker struct {
	Registry    *registry.Registry
	Strategies  *extractor.Strategies
	OpenSession OpenSession
	Downloader  Downloader
	Db          persistence.MetadataStorage
	Version     string
	Log         *slog.Logger
}

// RunAll scrapes the whole registry for date and returns one result per mosque in registry
// order. Per-source failures become empty results. Only a failure to start the rendering
// session, or cancellation of ctx, fails the run.
func (w *ScrapeWorker) RunAll(ctx context.Context, date time.Time) (*model.DailySnapshot, error) {
	startTime := time.Now()
	runID := uuid.New().String()
	day := date.Format(model.DateLayout)
	log := w.Log.With(slog.String("run", runID), slog.String("date", day))
	log.Info("starting scrape run.", slog.Int("mosques", w.Registry.Len()))

	var session Renderer
	if w.needsSession() {
		var err error
		session, err = w.OpenSession(ctx)
		if err != nil {
			log.Error("failed to start rendering session.", slog.String("err", err.Error()))
			return nil, fmt.Errorf("start rendering session: %w", err)
		}
		defer session.Close()
	}

	results := make([]model.MosqueResult, 0, w.Registry.Len())
	for _, d := range w.Registry.All() {
		meta := &model.ScrapeMetadata{
			RunID:               runID,
			Date:                day,
			MosqueID:            d.ID,
			SourceKind:          d.SourceKind,
			ScrapeWorkerVersion: w.Version,
		}
		res := w.scrapeOne(ctx, log, session, &d, date, meta)
		results = append(results, res)
		w.Db.Save(ctx, meta)
	}
	if err := ctx.Err(); err != nil {
		log.Warn("scrape run cancelled.", slog.String("err", err.Error()))
		return nil, err
	}

	metrics.RunDuration.Observe(time.Since(startTime).Seconds())
	log.Info("scrape run finished.", slog.Duration("took", time.Since(startTime)))

	return &model.DailySnapshot{
		Date:      day,
		Results:   results,
		UpdatedAt: time.Now(),
	}, nil
}

func (w *ScrapeWorker) needsSession() bool {
	for _, d := range w.Registry.All() {
		if ex, ok := w.Strategies.Lookup(&d); ok && ex.Input() == extractor.RenderedPage {
			return true
		}
	}
	return false
}

// scrapeOne never fails: whatever goes wrong is recorded in meta and the empty result is returned.
func (w *ScrapeWorker) scrapeOne(ctx context.Context, log *slog.Logger, session Renderer,
	d *model.MosqueDescriptor, date time.Time, meta *model.ScrapeMetadata) (res model.MosqueResult) {
	startTime := time.Now()
	log = log.With(slog.String("mosque", d.ID))
	fail := func(err error) model.MosqueResult {
		meta.Status = model.ScrapeFailed
		meta.Error = err.Error()
		meta.Confidence = model.ConfidenceNone
		metrics.ScrapesTotal.WithLabelValues(d.ID, string(model.ScrapeFailed)).Inc()
		return model.NewMosqueResult(d, model.EmptyExtraction(), time.Now())
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("PANIC!", slog.Any("err", r))
			res = fail(fmt.Errorf("panic: %v", r))
		}
		meta.TimeToScrape = time.Since(startTime).Milliseconds()
		metrics.ScrapeDuration.WithLabelValues(d.ID).Observe(time.Since(startTime).Seconds())
	}()

	ex, ok := w.Strategies.Lookup(d)
	if !ok {
		log.Error("no extractor registered for source.", slog.String("kind", string(d.SourceKind)),
			slog.String("site", d.SourceParams.Site))
		return fail(errors.New("no extractor registered"))
	}
	url := extractor.ResolveURL(d, date)
	meta.URL = url
	meta.ScrapeMechanism = ex.Input().String()

	page, err := w.fetch(ctx, session, ex.Input(), url)
	if err != nil {
		log.Warn("failed to fetch source.", slog.String("url", url), slog.String("err", err.Error()))
		return fail(err)
	}

	e := ex.Extract(ctx, &extractor.Request{Mosque: d, Date: date, Page: page})
	res = model.NewMosqueResult(d, e, time.Now())
	meta.Confidence = res.Confidence
	meta.PrayersFound = res.Jamaah.Found()
	meta.JummahFound = len(res.Jummah)
	meta.Status = model.ScrapeOK
	if res.Confidence == model.ConfidenceNone {
		meta.Status = model.ScrapeEmpty
		log.Warn("no times found.", slog.String("url", url))
	} else {
		log.Debug("source scraped.", slog.Int("prayers", meta.PrayersFound), slog.Int("jummah", meta.JummahFound),
			slog.String("confidence", string(res.Confidence)))
	}
	metrics.ScrapesTotal.WithLabelValues(d.ID, string(res.Confidence)).Inc()

	return res
}

func (w *ScrapeWorker) fetch(ctx context.Context, session Renderer, in extractor.Input,
	url string) (*extractor.Page, error) {
	switch in {
	case extractor.RenderedPage:
		if session == nil {
			return nil, crawler.ErrSessionClosed
		}
		return session.Render(ctx, url)
	case extractor.Document:
		body, err := w.Downloader.Download(ctx, url)
		if err != nil {
			return nil, err
		}
		return &extractor.Page{URL: url, Body: body}, nil
	default:
		return nil, fmt.Errorf("unsupported input %d", in)
	}
}
