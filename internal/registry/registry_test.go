package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.Equal(t, len(kentMosques), r.Len())

	dmic, ok := r.Get("dmic")
	require.True(t, ok)
	assert.Equal(t, model.PDFTable, dmic.SourceKind)
	assert.Equal(t, model.MonthlyTable, dmic.SourceParams.Layout)

	all := r.All()
	assert.Equal(t, "kmwa", all[0].ID)
	all[0].ID = "changed"
	first, _ := r.Get("kmwa")
	assert.Equal(t, "kmwa", first.ID, "All must return a copy")
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]model.MosqueDescriptor{
		{ID: "a", URL: "https://a.example"},
		{ID: "a", URL: "https://b.example"},
	})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestNewValidatesKinds(t *testing.T) {
	_, err := New([]model.MosqueDescriptor{{ID: "a", URL: "https://a.example", SourceKind: "rss"}})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New([]model.MosqueDescriptor{{ID: "a", URL: "https://a.example", SourceKind: model.CustomHTML}})
	assert.Error(t, err)

	r, err := New([]model.MosqueDescriptor{{ID: "a", URL: "https://a.example"}})
	require.NoError(t, err)
	a, _ := r.Get("a")
	assert.Equal(t, model.GenericHTML, a.SourceKind)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosques.yaml")
	content := `mosques:
  - id: local
    name: Local Masjid
    url: https://local.example/times
    address: Somewhere, Kent
    source_kind: custom_html
    source_params:
      site: table
      selector: "table.times tr"
      name_column: 0
      time_column: 3
  - id: pdf
    name: PDF Masjid
    url: https://pdf.example/times.pdf
    source_kind: pdf_table
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	local, ok := r.Get("local")
	require.True(t, ok)
	assert.Equal(t, "table", local.SourceParams.Site)
	assert.Equal(t, "table.times tr", local.SourceParams.Selector)
	assert.Equal(t, 3, local.SourceParams.TimeColumn)

	pdf, _ := r.Get("pdf")
	assert.Equal(t, model.MonthlyTable, pdf.SourceParams.Layout)
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, len(kentMosques), r.Len())
}
