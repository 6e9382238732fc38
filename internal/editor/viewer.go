package editor

import (
	"fmt"
	"time"

	"formloom/api/internal/formclient"
)

// Table is the response table derived from a responses fetch. Columns come
// from the first response's answer keys in their declared order; later
// responses contribute rows only, with blanks where they lack a column.
type Table struct {
	Columns []string
	Rows    [][]string
	Empty   bool
}

const submittedColumn = "Submitted"

// BuildTable renders a responses snapshot. It returns nil while the fetch is
// loading or after it failed; an empty result set yields a table with
// Empty set and no columns.
func BuildTable(state formclient.ResponsesState) *Table {
	if state.Loading || state.Err != nil || !state.Loaded {
		return nil
	}
	if len(state.Responses) == 0 {
		return &Table{Empty: true}
	}

	first := state.Responses[0]
	keys := first.Data.Keys()

	columns := make([]string, 0, len(keys)+1)
	columns = append(columns, submittedColumn)
	columns = append(columns, keys...)

	rows := make([][]string, 0, len(state.Responses))
	for _, response := range state.Responses {
		row := make([]string, 0, len(columns))
		row = append(row, formatSubmitted(response.CreatedTime))
		for _, key := range keys {
			value, ok := response.Data.Get(key)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatCell(value))
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}
}

func formatSubmitted(epochMillis int64) string {
	if epochMillis == 0 {
		return ""
	}
	return time.UnixMilli(epochMillis).Format("Jan 2, 2006 3:04 PM")
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
