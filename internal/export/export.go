// Package export turns a form's collected responses into downloadable files:
// CSV for spreadsheets, or a PDF of the response table rendered through
// headless Chrome.
package export

import (
	"errors"
	"fmt"
	"time"

	"formloom/api/internal/form"
)

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

var (
	ErrUnsupportedFormat    = errors.New("unsupported export format")
	ErrPDFDependencyMissing = errors.New("pdf export requires chromium")
)

// Result is a rendered export ready to be served as a download.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Responses renders the given form's responses in the requested format.
// Columns follow the first response's answer keys in declared order, the same
// rule the response table viewer uses.
func Responses(item form.Form, responses []form.Response, format Format) (*Result, error) {
	columns, rows := tabulate(responses)
	title := form.DisplayTitle(item.Title)

	switch format {
	case FormatCSV:
		return exportCSV(title, columns, rows)
	case FormatPDF:
		return exportPDF(title, columns, rows)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// tabulate flattens responses into a column header row and value rows. The
// submitted timestamp leads every row; answers a response lacks stay blank,
// and answers outside the first response's keys are dropped.
func tabulate(responses []form.Response) ([]string, [][]string) {
	if len(responses) == 0 {
		return nil, nil
	}

	keys := responses[0].Data.Keys()
	columns := append([]string{"Submitted"}, keys...)

	rows := make([][]string, 0, len(responses))
	for _, response := range responses {
		row := make([]string, 0, len(columns))
		row = append(row, formatSubmitted(response.CreatedTime))
		for _, key := range keys {
			value, ok := response.Data.Get(key)
			if !ok || value == nil {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("%v", value))
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func formatSubmitted(epochMillis int64) string {
	if epochMillis == 0 {
		return ""
	}
	return time.UnixMilli(epochMillis).Format("2006-01-02 15:04:05")
}

// sanitizeFilename derives a safe download name from a form title.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "responses"
	}
	return result
}
