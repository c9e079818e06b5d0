package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText extracts raw text from a PDF buffer.
type PDFText interface {
	Text(data []byte) (string, error)
}

// RowText reads a PDF row by row, so that a timetable line comes out as one line of text.
type RowText struct{}

func (RowText) Text(data []byte) (text string, err error) {
	// the reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		for _, row := range rows {
			writeRow(&b, row.Content)
			b.WriteByte('\n')
		}
	}
	if strings.TrimSpace(b.String()) != "" {
		return b.String(), nil
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	return string(raw), nil
}

// writeRow joins text runs, adding a space only where there is a visible gap between them.
// Some generators emit one run per glyph, which would otherwise split "05:30" apart.
func writeRow(b *strings.Builder, runs []pdf.Text) {
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			if t.X-(prev.X+prev.W) > prev.FontSize*0.2 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
}
