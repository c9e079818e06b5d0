package model

type ScrapeStatus string

const (
	ScrapeOK     ScrapeStatus = "ok"
	ScrapeEmpty  ScrapeStatus = "empty"
	ScrapeFailed ScrapeStatus = "failed"
)

// ScrapeMetadata describes one source scrape of a run. It is an operational record; the
// result itself lives in the snapshot.
type ScrapeMetadata struct {
	RunID               string       `json:"run_id"`
	Date                string       `json:"date"`
	MosqueID            string       `json:"mosque_id"`
	URL                 string       `json:"url"`
	SourceKind          SourceKind   `json:"source_kind"`
	ScrapeMechanism     string       `json:"scrape_mechanism"`
	TimeToScrape        int64        `json:"time_to_scrape"` // in milliseconds
	Status              ScrapeStatus `json:"status"`
	Confidence          Confidence   `json:"confidence"`
	PrayersFound        int          `json:"prayers_found"`
	JummahFound         int          `json:"jummah_found"`
	Error               string       `json:"error,omitempty"`
	ScrapeWorkerVersion string       `json:"scrape_worker_version"`
}

// RefreshTask asks the service to regenerate the snapshot for Date (today when empty).
type RefreshTask struct {
	Date string `json:"date"`
}
