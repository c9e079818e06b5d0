package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/registry"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
)

func printSnapshot(w io.Writer, s *model.DailySnapshot, format string) error {
	switch strings.ToLower(format) {
	case "json", "":
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "table":
		t := newTable(w)
		header := table.Row{"Mosque"}
		for _, p := range model.Prayers {
			header = append(header, string(p))
		}
		t.AppendHeader(append(header, "Jummah", "Confidence"))
		for _, r := range s.Results {
			row := table.Row{r.Name}
			for _, p := range model.Prayers {
				row = append(row, orDash(r.Jamaah[p]))
			}
			t.AppendRow(append(row, orDash(strings.Join(r.Jummah, " ")), string(r.Confidence)))
		}
		t.AppendFooter(table.Row{s.Date, "", "", "", "", "", "", s.UpdatedAt.Format("15:04:05")})
		t.Render()
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printRegistry(w io.Writer, reg *registry.Registry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Source", "Address", "URL"})
	for _, d := range reg.All() {
		source := string(d.SourceKind)
		if d.SourceKind == model.CustomHTML {
			source += ":" + d.SourceParams.Site
		}
		url := d.URL
		if d.SourceParams.URLTemplate != "" {
			url = d.SourceParams.URLTemplate
		}
		t.AppendRow(table.Row{d.ID, d.Name, source, d.Address, url})
	}
	t.AppendFooter(table.Row{"Total", reg.Len()})
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
