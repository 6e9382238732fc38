package export

import (
	"strings"
	"testing"

	"formloom/api/internal/form"
)

func response(createdMillis int64, pairs ...string) form.Response {
	fields := form.NewFields()
	for i := 0; i+1 < len(pairs); i += 2 {
		fields.Set(pairs[i], pairs[i+1])
	}
	return form.Response{ID: "r", FormID: "form_1", CreatedTime: createdMillis, Data: fields}
}

func TestCSVColumnsFromFirstResponse(t *testing.T) {
	item := form.Form{ID: "form_1", Title: "Event RSVP"}
	responses := []form.Response{
		response(1700000000000, "name", "Ada", "attending", "yes"),
		response(1700000060000, "name", "Grace", "plusOne", "1"),
	}

	result, err := Responses(item, responses, FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "Event-RSVP.csv" {
		t.Fatalf("filename = %q", result.Filename)
	}
	if result.MimeType != "text/csv" {
		t.Fatalf("mime = %q", result.MimeType)
	}

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d: %q", len(lines), lines)
	}
	if lines[0] != "Submitted,name,attending" {
		t.Fatalf("header = %q", lines[0])
	}
	// Second response has no "attending" answer and its "plusOne" answer
	// never becomes a column.
	if !strings.HasSuffix(lines[2], ",Grace,") {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestCSVEmptyResponses(t *testing.T) {
	result, err := Responses(form.Form{Title: ""}, nil, FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "Untitled-form.csv" {
		t.Fatalf("filename = %q", result.Filename)
	}
	if len(result.Data) != 0 {
		t.Fatalf("empty export has data: %q", result.Data)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := Responses(form.Form{}, nil, Format("docx")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestRenderTableHTMLEscapes(t *testing.T) {
	html, err := renderTableHTML("Quiz", []string{"answer"}, [][]string{{"<script>alert(1)</script>"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Fatal("cell content not escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Fatalf("escaped content missing: %s", html)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Event RSVP 2026":       "Event-RSVP-2026",
		"semi/colons: bad?":     "semicolons-bad",
		"":                      "responses",
		strings.Repeat("a", 80): strings.Repeat("a", 50),
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
