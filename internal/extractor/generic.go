package extractor

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/timetoken"
	"github.com/PuerkitoBio/goquery"
)

// maxJummahNodes bounds how many "jum" elements are inspected on a page.
const maxJummahNodes = 6

// GenericHTML reads times from the visible text of any page: a prayer name, some non-digits,
// then a time.
type GenericHTML struct {
	patterns map[model.Prayer]*regexp.Regexp
	log      *slog.Logger
}

func NewGenericHTML(log *slog.Logger) *GenericHTML {
	patterns := make(map[model.Prayer]*regexp.Regexp, len(model.Prayers))
	for _, p := range model.Prayers {
		names := model.PrayerAliases(p)
		for i, n := range names {
			names[i] = regexp.QuoteMeta(n)
		}
		patterns[p] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(names, "|") + `)[^\d]*(\d{1,2}:\d{2}(?:\s?[ap]m)?)`)
	}
	return &GenericHTML{patterns: patterns, log: log}
}

func (g *GenericHTML) Input() Input {
	return RenderedPage
}

func (g *GenericHTML) Extract(_ context.Context, req *Request) (out model.Extraction) {
	defer guard(g.log, req, &out)
	if !hasPage(req) {
		return model.EmptyExtraction()
	}

	var doc *goquery.Document
	if req.Page.HTML != "" {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(req.Page.HTML))
		if err != nil {
			g.log.Warn("failed to parse page html.", slog.String("mosque", req.Mosque.ID),
				slog.String("err", err.Error()))
		} else {
			doc = d
		}
	}

	text := req.Page.Text
	if text == "" && doc != nil {
		text = visibleText(doc)
	}

	out = model.EmptyExtraction()
	out.Jamaah = g.jamaah(text)
	if doc != nil {
		out.Jummah = jummahFromDocument(doc)
	} else {
		out.Jummah = jummahFromLines(text)
	}
	if !out.IsEmpty() {
		out.Confidence = model.ConfidenceHigh
	}
	return out
}

func (g *GenericHTML) jamaah(text string) model.PrayerTimeSet {
	set := model.PrayerTimeSet{}
	for _, p := range model.Prayers {
		m := g.patterns[p].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := timetoken.Normalize(m[1]); ok {
			set.Set(p, t)
		}
	}
	return set
}

// jummahFromDocument reads times from the innermost elements mentioning "jum". A label
// element without a time ("<td>Jummah</td>") is read through its parent row or container.
func jummahFromDocument(doc *goquery.Document) model.JummahTimes {
	nodes := doc.Find("body *").Not("script, style, noscript").
		FilterFunction(func(_ int, s *goquery.Selection) bool {
			if !containsJum(s.Text()) {
				return false
			}
			return s.Children().FilterFunction(func(_ int, c *goquery.Selection) bool {
				return containsJum(c.Text())
			}).Length() == 0
		})
	if nodes.Length() > maxJummahNodes {
		nodes = nodes.Slice(0, maxJummahNodes)
	}

	var times []string
	nodes.Each(func(_ int, s *goquery.Selection) {
		found := timetoken.Extract(spacedText(s))
		if len(found) == 0 {
			found = timetoken.Extract(spacedText(s.Parent()))
		}
		times = append(times, found...)
	})
	return model.NewJummahTimes(times...)
}

func jummahFromLines(text string) model.JummahTimes {
	var times []string
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		if seen == maxJummahNodes {
			break
		}
		if containsJum(line) {
			seen++
			times = append(times, timetoken.Extract(line)...)
		}
	}
	return model.NewJummahTimes(times...)
}

func visibleText(doc *goquery.Document) string {
	return spacedText(doc.Find("body"))
}
