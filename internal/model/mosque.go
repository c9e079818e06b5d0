package model

import (
	"time"
)

const DateLayout = "2006-01-02"

// SourceKind selects the extraction strategy for a mosque.
type SourceKind string

const (
	GenericHTML SourceKind = "generic_html"
	PDFTable    SourceKind = "pdf_table"
	CustomHTML  SourceKind = "custom_html"
)

func (k SourceKind) IsHTML() bool {
	return k == GenericHTML || k == CustomHTML
}

// PDFLayout tells the PDF extractor whether the document is a day-indexed monthly table.
type PDFLayout string

const (
	MonthlyTable PDFLayout = "monthly"
	SingleDay    PDFLayout = "single_day"
)

// SourceParams carries strategy specific settings. Unused fields are ignored by other strategies.
type SourceParams struct {
	Site        string    `json:"site,omitempty" mapstructure:"site"`
	URLTemplate string    `json:"urlTemplate,omitempty" mapstructure:"url_template"`
	Layout      PDFLayout `json:"layout,omitempty" mapstructure:"layout"`
	Selector    string    `json:"selector,omitempty" mapstructure:"selector"`
	NameColumn  int       `json:"nameColumn,omitempty" mapstructure:"name_column"`
	TimeColumn  int       `json:"timeColumn,omitempty" mapstructure:"time_column"`
}

type MosqueDescriptor struct {
	ID           string       `json:"id" mapstructure:"id"`
	Name         string       `json:"name" mapstructure:"name"`
	URL          string       `json:"url" mapstructure:"url"`
	Address      string       `json:"address" mapstructure:"address"`
	SourceKind   SourceKind   `json:"sourceKind" mapstructure:"source_kind"`
	SourceParams SourceParams `json:"sourceParams" mapstructure:"source_params"`
}

// Confidence grades how an extraction was obtained.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
	ConfidenceNone Confidence = "none"
)

// Extraction is the outcome of one extractor call. An empty extraction is a valid outcome, not an error.
type Extraction struct {
	Jamaah     PrayerTimeSet
	Jummah     JummahTimes
	Confidence Confidence
}

func EmptyExtraction() Extraction {
	return Extraction{
		Jamaah:     PrayerTimeSet{},
		Jummah:     JummahTimes{},
		Confidence: ConfidenceNone,
	}
}

func (e Extraction) IsEmpty() bool {
	return e.Jamaah.Found() == 0 && len(e.Jummah) == 0
}

type MosqueResult struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Address    string        `json:"address"`
	Jamaah     PrayerTimeSet `json:"jamaah"`
	Jummah     JummahTimes   `json:"jummah"`
	Confidence Confidence    `json:"confidence"`
	ScrapedAt  time.Time     `json:"scrapedAt"`
}

func NewMosqueResult(d *MosqueDescriptor, e Extraction, scrapedAt time.Time) MosqueResult {
	if e.Jamaah == nil {
		e.Jamaah = PrayerTimeSet{}
	}
	e.Jummah = NewJummahTimes(e.Jummah...)
	if e.IsEmpty() {
		e.Confidence = ConfidenceNone
	} else if e.Confidence == "" {
		e.Confidence = ConfidenceHigh
	}
	return MosqueResult{
		ID:         d.ID,
		Name:       d.Name,
		URL:        d.URL,
		Address:    d.Address,
		Jamaah:     e.Jamaah,
		Jummah:     e.Jummah,
		Confidence: e.Confidence,
		ScrapedAt:  scrapedAt,
	}
}

// DailySnapshot is immutable once stored. A newer snapshot replaces it; it is never edited in place.
type DailySnapshot struct {
	Date      string         `json:"date"`
	Results   []MosqueResult `json:"results"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
