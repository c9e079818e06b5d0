package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/timetoken"
	"github.com/PuerkitoBio/goquery"
)

const (
	defaultRowSelector  = "table tr"
	defaultItemSelector = "li"
)

// Table reads sites that publish a timetable with one row per prayer: a name cell and an
// iqamah cell at fixed column indexes. When the time column is not after the name column the
// row's last cell is used.
type Table struct {
	log *slog.Logger
}

func NewTable(log *slog.Logger) *Table {
	return &Table{log: log}
}

func (t *Table) Input() Input {
	return RenderedPage
}

func (t *Table) Extract(_ context.Context, req *Request) (out model.Extraction) {
	defer guard(t.log, req, &out)
	doc, ok := parseDocument(req, t.log)
	if !ok {
		return model.EmptyExtraction()
	}
	params := req.Mosque.SourceParams
	selector := params.Selector
	if selector == "" {
		selector = defaultRowSelector
	}

	out = model.EmptyExtraction()
	var jummah []string
	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if params.NameColumn >= cells.Length() {
			return
		}
		name := strings.TrimSpace(spacedText(cells.Eq(params.NameColumn)))
		if containsJum(name) {
			// the name cell and every cell after it may hold one of several jummah times
			cells.Slice(params.NameColumn, cells.Length()).Each(func(_ int, c *goquery.Selection) {
				jummah = append(jummah, timetoken.Extract(spacedText(c))...)
			})
			return
		}

		timeCol := params.TimeColumn
		if timeCol <= params.NameColumn {
			timeCol = cells.Length() - 1
		}
		if timeCol >= cells.Length() || timeCol == params.NameColumn {
			return
		}
		p, ok := model.CanonicalPrayer(name)
		if !ok {
			return
		}
		if tm, ok := timetoken.First(spacedText(cells.Eq(timeCol))); ok {
			out.Jamaah.Set(p, tm)
		}
	})
	out.Jummah = model.NewJummahTimes(jummah...)
	if !out.IsEmpty() {
		out.Confidence = model.ConfidenceHigh
	}
	return out
}

// List reads sites that show prayers as list items with "Name: time" lines. Lines mentioning
// jumah or jummah carry the Friday times.
type List struct {
	log *slog.Logger
}

func NewList(log *slog.Logger) *List {
	return &List{log: log}
}

func (l *List) Input() Input {
	return RenderedPage
}

func (l *List) Extract(_ context.Context, req *Request) (out model.Extraction) {
	defer guard(l.log, req, &out)
	doc, ok := parseDocument(req, l.log)
	if !ok {
		return model.EmptyExtraction()
	}
	selector := req.Mosque.SourceParams.Selector
	if selector == "" {
		selector = defaultItemSelector
	}

	out = model.EmptyExtraction()
	var jummah []string
	doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
		for _, line := range itemLines(item) {
			if containsJum(line) {
				jummah = append(jummah, timetoken.Extract(line)...)
				continue
			}
			name, rest, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			p, ok := model.CanonicalPrayer(name)
			if !ok {
				continue
			}
			if tm, ok := timetoken.First(rest); ok {
				out.Jamaah.Set(p, tm)
			}
		}
	})
	out.Jummah = model.NewJummahTimes(jummah...)
	if !out.IsEmpty() {
		out.Confidence = model.ConfidenceHigh
	}
	return out
}

// itemLines splits an item on <br> and block children; plain Text() would glue them together.
func itemLines(item *goquery.Selection) []string {
	clone := item.Clone()
	clone.Find("br").ReplaceWithHtml("\n")
	clone.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	var lines []string
	for _, line := range strings.Split(spacedText(clone), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseDocument(req *Request, log *slog.Logger) (*goquery.Document, bool) {
	if !hasPage(req) || req.Page.HTML == "" {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(req.Page.HTML))
	if err != nil {
		log.Warn("failed to parse page html.", slog.String("mosque", req.Mosque.ID),
			slog.String("err", err.Error()))
		return nil, false
	}
	return doc, true
}
