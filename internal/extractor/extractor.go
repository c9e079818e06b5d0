// Package extractor turns a rendered mosque page or a timetable PDF into jamaah and jummah times.
//
// Extractors never fail: whatever goes wrong inside one of them is logged and mapped to an
// empty model.Extraction, so one broken source cannot affect another.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Input is the kind of content an extractor needs fetched before Extract is called.
type Input int

const (
	RenderedPage Input = iota
	Document
)

func (i Input) String() string {
	return [...]string{"rendered page", "document"}[i]
}

// Page is fetched content for one mosque. Text and HTML are filled for rendered pages, Body for documents.
type Page struct {
	URL  string
	Text string
	HTML string
	Body []byte
}

type Request struct {
	Mosque *model.MosqueDescriptor
	Date   time.Time
	Page   *Page
}

type Extractor interface {
	Input() Input
	Extract(ctx context.Context, req *Request) model.Extraction
}

// Strategies maps source kinds, and custom sites, to extractors.
type Strategies struct {
	byKey map[string]Extractor
	log   *slog.Logger
}

// NewStrategies registers the built-in extractors. More can be added with Register.
func NewStrategies(pdfText PDFText, log *slog.Logger) *Strategies {
	s := &Strategies{byKey: make(map[string]Extractor), log: log}
	s.Register(Key(model.GenericHTML, ""), NewGenericHTML(log))
	s.Register(Key(model.PDFTable, ""), NewPDFTable(pdfText, log))
	s.Register(Key(model.CustomHTML, "table"), NewTable(log))
	s.Register(Key(model.CustomHTML, "list"), NewList(log))
	return s
}

func (s *Strategies) Register(key string, e Extractor) {
	s.byKey[key] = e
}

// Lookup finds the extractor for a mosque. Custom sites without their own entry are not
// served by the generic one: a missing strategy is a configuration error worth seeing.
func (s *Strategies) Lookup(d *model.MosqueDescriptor) (Extractor, bool) {
	e, ok := s.byKey[Key(d.SourceKind, d.SourceParams.Site)]
	return e, ok
}

// Key builds the lookup key for a source kind. Site only matters for custom_html.
func Key(kind model.SourceKind, site string) string {
	if kind != model.CustomHTML {
		return string(kind)
	}
	return string(kind) + ":" + site
}

// ResolveURL returns the URL to fetch for date, expanding the descriptor's URL template when set.
// Template fields: {month} (January), {mon} (Jan), {mm} (01), {year} (2025).
func ResolveURL(d *model.MosqueDescriptor, date time.Time) string {
	if d.SourceParams.URLTemplate == "" {
		return d.URL
	}
	month := date.Month().String()
	r := strings.NewReplacer(
		"{month}", month,
		"{mon}", month[:3],
		"{mm}", fmt.Sprintf("%02d", int(date.Month())),
		"{year}", strconv.Itoa(date.Year()),
	)
	return r.Replace(d.SourceParams.URLTemplate)
}

// guard converts a panic inside an extractor into the empty result.
func guard(log *slog.Logger, req *Request, out *model.Extraction) {
	if r := recover(); r != nil {
		id := ""
		if req != nil && req.Mosque != nil {
			id = req.Mosque.ID
		}
		log.Error("extractor panicked.", slog.String("mosque", id), slog.Any("err", r))
		*out = model.EmptyExtraction()
	}
}

func hasPage(req *Request) bool {
	return req != nil && req.Page != nil && req.Mosque != nil
}

func containsJum(s string) bool {
	return strings.Contains(strings.ToLower(s), "jum")
}

// spacedText is Selection.Text with a space between text nodes, so adjacent cells such as
// <td>Jummah</td><td>12:45</td> do not run together.
func spacedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(n, &b)
	}
	return b.String()
}

func writeText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
}
