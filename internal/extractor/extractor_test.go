package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePDFText struct {
	text string
	err  error
}

func (f fakePDFText) Text([]byte) (string, error) {
	return f.text, f.err
}

func htmlRequest(d *model.MosqueDescriptor, text, html string) *Request {
	return &Request{
		Mosque: d,
		Date:   time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC),
		Page:   &Page{URL: d.URL, Text: text, HTML: html},
	}
}

func TestGenericHTMLBodyText(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "kmwa", URL: "https://kmwa.org.uk/", SourceKind: model.GenericHTML}
	g := NewGenericHTML(testLog)

	out := g.Extract(context.Background(), htmlRequest(d, "Fajr Jamaah 05:15 ... Dhuhr Jamaah 13:00", ""))

	assert.Equal(t, model.PrayerTimeSet{model.Fajr: "05:15", model.Dhuhr: "13:00"}, out.Jamaah)
	assert.Empty(t, out.Jummah)
	assert.Equal(t, model.ConfidenceHigh, out.Confidence)
}

func TestGenericHTMLAliasesAndJummah(t *testing.T) {
	html := `<html><head><script>var jumbo = "09:00";</script></head><body>
<div class="times">
  <p>Fajr <b>6:10am</b></p>
  <p>Zuhr 12:30pm</p>
  <p>Asar 2:15pm</p>
  <p>Magrib 4:25pm</p>
  <p>Isha 6:00pm</p>
</div>
<table>
  <tr><td>Jummah</td><td>12:45</td><td>13:30</td></tr>
  <tr><td>Jumu'ah khutbah 1:15pm</td></tr>
</table>
</body></html>`
	d := &model.MosqueDescriptor{ID: "x", URL: "https://x.example", SourceKind: model.GenericHTML}

	out := NewGenericHTML(testLog).Extract(context.Background(), htmlRequest(d, "", html))

	assert.Equal(t, model.PrayerTimeSet{
		model.Fajr:    "06:10",
		model.Dhuhr:   "12:30",
		model.Asr:     "14:15",
		model.Maghrib: "16:25",
		model.Isha:    "18:00",
	}, out.Jamaah)
	assert.Equal(t, model.JummahTimes{"12:45", "13:30", "13:15"}, out.Jummah)
}

func TestGenericHTMLNoPage(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "x"}
	out := NewGenericHTML(testLog).Extract(context.Background(), &Request{Mosque: d})
	assert.True(t, out.IsEmpty())
	assert.Equal(t, model.ConfidenceNone, out.Confidence)
}

const monthlyTable = `Dartford Mosque Prayer Timetable
October 2025
Wed 15 05:40 06:00 07:20 12:55 13:30 15:50 16:15 18:10 19:25 19:45
November 2025
Date Fajr Jamaah Sunrise Zuhr Jamaah Asr Jamaah Maghrib Isha Jamaah
Fri 14 05:10 05:30 07:05 12:10 12:40 14:05 14:30 16:15 17:45 18:15
Sat 15 05:12 05:30 06:45 12:15 12:45 14:30 14:45 16:20 17:50 18:15
Sun 16 05:13 05:31 06:47 12:15 12:45 14:29 14:45 16:19 17:49 18:15
Jumu'ah 12:45 and 13:30
December 2025
`

func TestScanDayRowUsesOffsets(t *testing.T) {
	date := time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)

	out, ok := ScanDayRow(monthlyTable, date)

	require.True(t, ok)
	assert.Equal(t, model.PrayerTimeSet{
		model.Fajr:    "05:30",
		model.Dhuhr:   "12:45",
		model.Asr:     "14:45",
		model.Maghrib: "16:20",
		model.Isha:    "18:15",
	}, out.Jamaah)
	assert.Equal(t, model.JummahTimes{"12:45", "13:30"}, out.Jummah)
	assert.Equal(t, model.ConfidenceHigh, out.Confidence)
}

func TestScanDayRowShortRowFallsBack(t *testing.T) {
	date := time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)

	out, ok := ScanDayRow("November\nMon 15 05:12 05:30 06:45 12:15 12:45 ... ", date)

	require.True(t, ok)
	assert.Equal(t, "05:30", out.Jamaah[model.Fajr])
	assert.Equal(t, "12:45", out.Jamaah[model.Dhuhr])
	_, hasAsr := out.Jamaah[model.Asr]
	assert.False(t, hasAsr)
	assert.Equal(t, model.ConfidenceLow, out.Confidence)
}

func TestScanDayRowOutsideMonthBlock(t *testing.T) {
	date := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	text := "Timetable\nSun 2 05:00 05:20 06:40 12:10 12:30 15:00 15:15 17:50 19:05 19:30\n"

	out, ok := ScanDayRow(text, date)

	require.True(t, ok)
	assert.Equal(t, "05:20", out.Jamaah[model.Fajr])
	assert.Equal(t, "19:30", out.Jamaah[model.Isha])
}

func TestScanDayRowNoRow(t *testing.T) {
	_, ok := ScanDayRow("Fajr 05:00 Zuhr 12:30", time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestSequential(t *testing.T) {
	out := Sequential("5:30am 1:00pm 3:15pm 4:20pm 6:00pm Jummah 12:30 13:15 13:15 14:00 14:30 15:00 16:00")

	assert.Equal(t, model.PrayerTimeSet{
		model.Fajr:    "05:30",
		model.Dhuhr:   "13:00",
		model.Asr:     "15:15",
		model.Maghrib: "16:20",
		model.Isha:    "18:00",
	}, out.Jamaah)
	assert.Equal(t, model.JummahTimes{"12:30", "13:15", "14:00", "14:30"}, out.Jummah)

	assert.True(t, Sequential("only 05:00 and 06:00").IsEmpty())
}

func TestPDFTableExtract(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "dmic", SourceKind: model.PDFTable,
		SourceParams: model.SourceParams{Layout: model.MonthlyTable}}
	req := &Request{
		Mosque: d,
		Date:   time.Date(2025, time.November, 16, 0, 0, 0, 0, time.UTC),
		Page:   &Page{Body: []byte("%PDF")},
	}

	out := NewPDFTable(fakePDFText{text: monthlyTable}, testLog).Extract(context.Background(), req)
	assert.Equal(t, "05:31", out.Jamaah[model.Fajr])
	assert.Equal(t, "14:45", out.Jamaah[model.Asr])

	failed := NewPDFTable(fakePDFText{err: errors.New("bad xref")}, testLog).Extract(context.Background(), req)
	assert.True(t, failed.IsEmpty())

	req.Page.Body = nil
	assert.True(t, NewPDFTable(fakePDFText{text: monthlyTable}, testLog).Extract(context.Background(), req).IsEmpty())
}

func TestPDFTableFallsBackToSequential(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "p", SourceKind: model.PDFTable,
		SourceParams: model.SourceParams{Layout: model.MonthlyTable}}
	req := &Request{Mosque: d, Date: time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC),
		Page: &Page{Body: []byte("%PDF")}}
	text := "Today: Fajr 05:40 Zuhr 12:30 Asr 14:20 Maghrib 16:10 Isha 18:00 Jummah 12:45"

	out := NewPDFTable(fakePDFText{text: text}, testLog).Extract(context.Background(), req)

	assert.Equal(t, "05:40", out.Jamaah[model.Fajr])
	assert.Equal(t, model.JummahTimes{"12:45"}, out.Jummah)
	assert.Equal(t, model.ConfidenceLow, out.Confidence)

	d.SourceParams.Layout = model.SingleDay
	single := NewPDFTable(fakePDFText{text: text}, testLog).Extract(context.Background(), req)
	assert.Equal(t, model.ConfidenceHigh, single.Confidence)
}

type panicPDFText struct{}

func (panicPDFText) Text([]byte) (string, error) {
	panic("boom")
}

func TestExtractorPanicIsEmpty(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "p", SourceKind: model.PDFTable}
	req := &Request{Mosque: d, Date: time.Now(), Page: &Page{Body: []byte("%PDF")}}

	out := NewPDFTable(panicPDFText{}, testLog).Extract(context.Background(), req)

	assert.True(t, out.IsEmpty())
	assert.NotNil(t, out.Jamaah)
}

func TestTableExtractor(t *testing.T) {
	html := `<table class="times">
<tr><th>Prayer</th><th>Begins</th><th>Iqamah</th></tr>
<tr><td>Fajr</td><td>5:45</td><td>6:15</td></tr>
<tr><td>Zuhr</td><td>12:05</td><td>12:45</td></tr>
<tr><td>Asr</td><td>2:20pm</td></tr>
<tr><td>Maghrib</td><td>16:21</td><td>16:26</td></tr>
<tr><td>Isha</td><td>17:50</td><td>19:30</td></tr>
<tr><td>Jummah</td><td>13:00</td><td>13:45</td></tr>
</table>`
	d := &model.MosqueDescriptor{ID: "secc", SourceKind: model.CustomHTML,
		SourceParams: model.SourceParams{Site: "table", Selector: "table.times tr", NameColumn: 0, TimeColumn: 2}}

	out := NewTable(testLog).Extract(context.Background(), htmlRequest(d, "", html))

	assert.Equal(t, model.PrayerTimeSet{
		model.Fajr:    "06:15",
		model.Dhuhr:   "12:45",
		model.Maghrib: "16:26",
		model.Isha:    "19:30",
	}, out.Jamaah, "asr row has no iqamah cell")
	assert.Equal(t, model.JummahTimes{"13:00", "13:45"}, out.Jummah)
}

func TestTableExtractorMissingTable(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "secc", SourceKind: model.CustomHTML,
		SourceParams: model.SourceParams{Site: "table"}}
	out := NewTable(testLog).Extract(context.Background(), htmlRequest(d, "", "<p>Closed for refurbishment</p>"))
	assert.True(t, out.IsEmpty())
}

func TestListExtractor(t *testing.T) {
	html := `<ul class="prayers">
<li><span>Fajr</span>: <span>6:00 am</span></li>
<li>Dhuhr: 12:30</li>
<li>Asr: 3:00 pm<br>Maghrib: sunset</li>
<li>Isha: 19:15</li>
<li>Jummah: 1:00pm &amp; 1:45pm</li>
</ul>`
	d := &model.MosqueDescriptor{ID: "sbicc", SourceKind: model.CustomHTML,
		SourceParams: model.SourceParams{Site: "list", Selector: "ul.prayers li"}}

	out := NewList(testLog).Extract(context.Background(), htmlRequest(d, "", html))

	assert.Equal(t, model.PrayerTimeSet{
		model.Fajr:  "06:00",
		model.Dhuhr: "12:30",
		model.Asr:   "15:00",
		model.Isha:  "19:15",
	}, out.Jamaah)
	assert.Equal(t, model.JummahTimes{"13:00", "13:45"}, out.Jummah)
}

func TestStrategiesLookup(t *testing.T) {
	s := NewStrategies(fakePDFText{}, testLog)

	tests := []struct {
		d     model.MosqueDescriptor
		input Input
		ok    bool
	}{
		{model.MosqueDescriptor{SourceKind: model.GenericHTML}, RenderedPage, true},
		{model.MosqueDescriptor{SourceKind: model.PDFTable}, Document, true},
		{model.MosqueDescriptor{SourceKind: model.CustomHTML, SourceParams: model.SourceParams{Site: "table"}}, RenderedPage, true},
		{model.MosqueDescriptor{SourceKind: model.CustomHTML, SourceParams: model.SourceParams{Site: "list"}}, RenderedPage, true},
		{model.MosqueDescriptor{SourceKind: model.CustomHTML, SourceParams: model.SourceParams{Site: "nope"}}, 0, false},
	}
	for _, tt := range tests {
		e, ok := s.Lookup(&tt.d)
		assert.Equal(t, tt.ok, ok, Key(tt.d.SourceKind, tt.d.SourceParams.Site))
		if ok {
			assert.Equal(t, tt.input, e.Input())
		}
	}

	s.Register(Key(model.CustomHTML, "nope"), NewList(testLog))
	_, ok := s.Lookup(&tests[4].d)
	assert.True(t, ok)
}

func TestResolveURL(t *testing.T) {
	date := time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)
	d := &model.MosqueDescriptor{
		URL: "https://dmic.co.uk/fallback.pdf",
		SourceParams: model.SourceParams{
			URLTemplate: "https://dmic.co.uk/Timetable-{month}-{year}-{mon}-{mm}.pdf",
		},
	}
	assert.Equal(t, "https://dmic.co.uk/Timetable-February-2026-Feb-02.pdf", ResolveURL(d, date))

	d.SourceParams.URLTemplate = ""
	assert.Equal(t, "https://dmic.co.uk/fallback.pdf", ResolveURL(d, date))
}
