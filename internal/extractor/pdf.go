package extractor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/timetoken"
)

// Column offsets of jamaah times in a monthly timetable row, counted from the weekday column
// that precedes the day number:
//
//	Mon 15 | Fajr begin, Fajr jamaah | sunrise | Zuhr begin, Zuhr jamaah | Asr begin, Asr jamaah | Maghrib | Isha begin, Isha jamaah
//
// These match the one layout this was tuned against. A different table yields wrong times
// rather than none, which is why results from the fallbacks are marked low confidence.
var rowOffsets = [...]struct {
	prayer model.Prayer
	offset int
}{
	{model.Fajr, 3},
	{model.Dhuhr, 6},
	{model.Asr, 8},
	{model.Maghrib, 9},
	{model.Isha, 11},
}

// fallbackPositions index the time tokens that follow the day number when the row is too short
// for rowOffsets: begin/jamaah pairs with sunrise and a single maghrib time in between.
var fallbackPositions = [...]struct {
	prayer model.Prayer
	pos    int
}{
	{model.Fajr, 1},
	{model.Dhuhr, 4},
	{model.Asr, 6},
	{model.Maghrib, 7},
	{model.Isha, 9},
}

const sequentialJummah = 5

// PDFTable extracts times from a timetable PDF, preferring the row for the requested day.
type PDFTable struct {
	text PDFText
	log  *slog.Logger
}

func NewPDFTable(text PDFText, log *slog.Logger) *PDFTable {
	return &PDFTable{text: text, log: log}
}

func (p *PDFTable) Input() Input {
	return Document
}

func (p *PDFTable) Extract(_ context.Context, req *Request) (out model.Extraction) {
	defer guard(p.log, req, &out)
	if !hasPage(req) || len(req.Page.Body) == 0 {
		return model.EmptyExtraction()
	}

	text, err := p.text.Text(req.Page.Body)
	if err != nil {
		p.log.Warn("failed to read pdf text.", slog.String("mosque", req.Mosque.ID),
			slog.String("err", err.Error()))
		return model.EmptyExtraction()
	}

	if req.Mosque.SourceParams.Layout != model.SingleDay {
		if ext, ok := ScanDayRow(text, req.Date); ok {
			return ext
		}
		p.log.Info("no day row found in pdf, using sequential tokens.", slog.String("mosque", req.Mosque.ID),
			slog.String("date", req.Date.Format(model.DateLayout)))
		out = Sequential(text)
		if !out.IsEmpty() {
			out.Confidence = model.ConfidenceLow
		}
		return out
	}
	return Sequential(text)
}

// ScanDayRow finds the timetable row for date.Day(), first inside the block for the date's month
// and then anywhere in the text. It reports false when no row is found.
func ScanDayRow(text string, date time.Time) (model.Extraction, bool) {
	if block := monthBlock(text, date.Month()); block != "" {
		if ext, ok := scanLines(block, date.Day()); ok {
			return ext, true
		}
	}
	return scanLines(text, date.Day())
}

// Sequential assigns the first five times in the text to the five prayers in order and the
// next five to jummah. Fewer than five times yield no jamaah.
func Sequential(text string) model.Extraction {
	out := model.EmptyExtraction()
	times := timetoken.Extract(text)
	if len(times) < len(model.Prayers) {
		return out
	}
	for i, p := range model.Prayers {
		out.Jamaah.Set(p, times[i])
	}
	rest := times[len(model.Prayers):]
	if len(rest) > sequentialJummah {
		rest = rest[:sequentialJummah]
	}
	out.Jummah = model.NewJummahTimes(rest...)
	out.Confidence = model.ConfidenceHigh
	return out
}

// monthBlock returns the text from the first mention of month up to the next mention of a
// different month, or "" when month is not named.
func monthBlock(text string, month time.Month) string {
	lower := strings.ToLower(text)
	name := strings.ToLower(month.String())
	start := strings.Index(lower, name)
	if start < 0 {
		return ""
	}
	end := len(text)
	from := start + len(name)
	for m := time.January; m <= time.December; m++ {
		if m == month {
			continue
		}
		if i := strings.Index(lower[from:], strings.ToLower(m.String())); i >= 0 && from+i < end {
			end = from + i
		}
	}
	return text[start:end]
}

func scanLines(text string, day int) (model.Extraction, bool) {
	for _, line := range strings.Split(text, "\n") {
		tokens := strings.Fields(line)
		i := dayIndex(tokens, day)
		if i < 0 {
			continue
		}
		out := model.EmptyExtraction()
		if rowFromOffsets(tokens, i, out.Jamaah) {
			out.Confidence = model.ConfidenceHigh
		} else {
			out.Jamaah = rowFromPositions(tokens[i+1:])
			out.Confidence = model.ConfidenceLow
		}
		if out.Jamaah.Found() == 0 {
			continue
		}
		out.Jummah = jummahFromLines(text)
		return out, true
	}
	return model.Extraction{}, false
}

// dayIndex returns the index of the token equal to day, provided a time follows it in the row.
func dayIndex(tokens []string, day int) int {
	for i, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n != day {
			continue
		}
		for _, rest := range tokens[i+1:] {
			if _, ok := timetoken.Normalize(rest); ok {
				return i
			}
		}
		return -1
	}
	return -1
}

func rowFromOffsets(tokens []string, dayIdx int, set model.PrayerTimeSet) bool {
	base := dayIdx - 1
	last := rowOffsets[len(rowOffsets)-1].offset
	if base+last >= len(tokens) {
		return false
	}
	found := make(model.PrayerTimeSet, len(rowOffsets))
	for _, col := range rowOffsets {
		idx := base + col.offset
		if !timetoken.IsToken(tokens[idx]) {
			return false
		}
		t, _ := timetoken.Normalize(tokens[idx])
		found.Set(col.prayer, t)
	}
	for p, t := range found {
		set[p] = t
	}
	return true
}

func rowFromPositions(after []string) model.PrayerTimeSet {
	times := timetoken.Extract(strings.Join(after, " "))
	set := model.PrayerTimeSet{}
	for _, fp := range fallbackPositions {
		if fp.pos < len(times) {
			set.Set(fp.prayer, times[fp.pos])
		}
	}
	return set
}
