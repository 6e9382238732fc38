package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

func exportCSV(title string, columns []string, rows [][]string) (*Result, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if columns != nil {
		if err := writer.Write(columns); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".csv",
		MimeType: "text/csv",
	}, nil
}
