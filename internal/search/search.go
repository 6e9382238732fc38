// Package search lets workspace owners find their forms by title from the
// dashboard. Meilisearch serves queries when available, postgres otherwise.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Workspace string `json:"workspace"`
}

// Query describes a search request. Workspace is always set: a caller only
// ever searches their own forms.
type Query struct {
	Text      string
	Workspace string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a title search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// FormRecord is the data indexed for a form.
type FormRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Workspace string `json:"workspace"`
}
