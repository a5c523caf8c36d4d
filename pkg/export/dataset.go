package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Rows are positional so that
// duplicate header labels keep their own columns.
type Dataset struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

// Validate ensures every row matches the header width.
func (d Dataset) Validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}

// Format identifies a rendered file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// ParseFormat normalises raw into a Format, defaulting to XLSX when empty.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// Renderer turns a dataset into file bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// Renderers maps each supported format to its renderer.
type Renderers map[Format]Renderer

// DefaultRenderers wires the built-in XLSX, CSV and PDF renderers.
func DefaultRenderers() Renderers {
	return Renderers{
		FormatXLSX: NewXLSXExporter(),
		FormatCSV:  NewCSVExporter(),
		FormatPDF:  NewPDFExporter(),
	}
}

// Render dispatches to the renderer registered for format.
func (r Renderers) Render(format Format, data Dataset) ([]byte, error) {
	renderer, ok := r[format]
	if !ok {
		return nil, fmt.Errorf("no renderer for format %s", format)
	}
	return renderer.Render(data)
}
