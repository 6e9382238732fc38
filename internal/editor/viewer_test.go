package editor

import (
	"errors"
	"testing"
	"time"

	"formloom/api/internal/form"
	"formloom/api/internal/formclient"
)

func fieldsOf(pairs ...any) form.Fields {
	fields := form.NewFields()
	for i := 0; i+1 < len(pairs); i += 2 {
		fields.Set(pairs[i].(string), pairs[i+1])
	}
	return fields
}

func TestBuildTableNilWhileUnresolved(t *testing.T) {
	if table := BuildTable(formclient.ResponsesState{Loading: true}); table != nil {
		t.Fatal("loading state should yield no table")
	}
	if table := BuildTable(formclient.ResponsesState{Err: errors.New("boom")}); table != nil {
		t.Fatal("error state should yield no table")
	}
	if table := BuildTable(formclient.ResponsesState{}); table != nil {
		t.Fatal("unloaded state should yield no table")
	}
}

func TestBuildTableEmpty(t *testing.T) {
	table := BuildTable(formclient.ResponsesState{Loaded: true, Generation: 1})
	if table == nil || !table.Empty {
		t.Fatalf("table = %+v, want Empty", table)
	}
	if len(table.Columns) != 0 || len(table.Rows) != 0 {
		t.Fatalf("empty table has content: %+v", table)
	}
}

func TestBuildTableColumnsFromFirstResponse(t *testing.T) {
	submitted := time.Date(2026, time.March, 14, 15, 9, 0, 0, time.Local)
	state := formclient.ResponsesState{
		Loaded:     true,
		Generation: 1,
		Responses: []form.Response{
			{ID: "r1", CreatedTime: submitted.UnixMilli(), Data: fieldsOf("a", "1", "b", "2")},
			{ID: "r2", CreatedTime: submitted.UnixMilli(), Data: fieldsOf("a", "3", "c", "4")},
		},
	}

	table := BuildTable(state)
	if table == nil || table.Empty {
		t.Fatalf("table = %+v", table)
	}

	wantColumns := []string{"Submitted", "a", "b"}
	if len(table.Columns) != len(wantColumns) {
		t.Fatalf("columns = %v, want %v", table.Columns, wantColumns)
	}
	for i, col := range wantColumns {
		if table.Columns[i] != col {
			t.Fatalf("columns = %v, want %v", table.Columns, wantColumns)
		}
	}

	if table.Rows[0][0] != "Mar 14, 2026 3:09 PM" {
		t.Fatalf("submitted cell = %q", table.Rows[0][0])
	}
	if table.Rows[0][1] != "1" || table.Rows[0][2] != "2" {
		t.Fatalf("row 0 = %v", table.Rows[0])
	}
	// The second response has no "b": its cell is blank, and its "c" answer
	// never becomes a column.
	if table.Rows[1][1] != "3" || table.Rows[1][2] != "" {
		t.Fatalf("row 1 = %v", table.Rows[1])
	}
}

func TestBuildTableFormatsNonStringValues(t *testing.T) {
	state := formclient.ResponsesState{
		Loaded:     true,
		Generation: 1,
		Responses: []form.Response{
			{ID: "r1", Data: fieldsOf("count", 3, "checked", true, "note", nil)},
		},
	}
	table := BuildTable(state)
	row := table.Rows[0]
	if row[1] != "3" || row[2] != "true" || row[3] != "" {
		t.Fatalf("row = %v", row)
	}
}
