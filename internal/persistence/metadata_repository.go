package persistence

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
)

type MetadataStorage interface {
	Save(context.Context, *model.ScrapeMetadata)
}

type MetadataRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMetadataRepository(db *sql.DB, log *slog.Logger) *MetadataRepository {
	return &MetadataRepository{db: db, log: log}
}

// Save writes one row per source scrape. Failures are logged only: the metadata log never
// blocks a run.
func (mr *MetadataRepository) Save(ctx context.Context, m *model.ScrapeMetadata) {
	_, err := mr.db.ExecContext(ctx, "INSERT INTO scrape_metadata (run_id, scrape_date, mosque_id, url, source_kind, scrape_mechanism, time_to_scrape, status, confidence, prayers_found, jummah_found, error, scrape_worker_version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.RunID,
		m.Date,
		m.MosqueID,
		m.URL,
		string(m.SourceKind),
		m.ScrapeMechanism,
		m.TimeToScrape,
		string(m.Status),
		string(m.Confidence),
		m.PrayersFound,
		m.JummahFound,
		truncate(m.Error, 1000),
		m.ScrapeWorkerVersion)
	if err != nil {
		mr.log.Error("failed to save scrape metadata to database.", slog.String("mosque", m.MosqueID),
			slog.String("err", err.Error()))
		return
	}
	mr.log.Debug("scrape metadata saved to db.", slog.String("mosque", m.MosqueID))
}

// NoopMetadataStorage is used when no database is configured.
type NoopMetadataStorage struct{}

func (NoopMetadataStorage) Save(context.Context, *model.ScrapeMetadata) {}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
