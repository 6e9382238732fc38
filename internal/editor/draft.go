// Package editor holds the authoring-session state machine: the editable
// draft, its seeding from fetched server state, the authorization gate that
// decides what the session may do, the mutation orchestrator that pushes
// edits back, and the response table viewer.
package editor

import (
	"encoding/json"
	"sync"

	"formloom/api/internal/form"
)

// Draft is the editable working copy of a form: the five authorable fields
// behind one mutex. Setters touch single fields; Seed replaces all five
// atomically so an observer never sees a half-seeded draft.
type Draft struct {
	mu      sync.Mutex
	title   string
	header  form.Header
	style   json.RawMessage
	options form.Options
	blocks  []form.Block
}

func NewDraft() *Draft {
	return &Draft{options: form.DefaultOptions()}
}

// Snapshot is a consistent read of all five fields.
type Snapshot struct {
	Title   string
	Header  form.Header
	Style   json.RawMessage
	Options form.Options
	Blocks  []form.Block
}

// Seed replaces the whole draft with a fetched form in a single step.
func (d *Draft) Seed(item form.Form) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = item.Title
	d.header = item.Header
	d.style = append(json.RawMessage(nil), item.Style...)
	d.options = item.Options
	d.blocks = append([]form.Block(nil), item.Blocks...)
}

// Reset returns the draft to its pristine state.
func (d *Draft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = ""
	d.header = form.Header{}
	d.style = nil
	d.options = form.DefaultOptions()
	d.blocks = nil
}

func (d *Draft) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

func (d *Draft) SetHeader(header form.Header) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.header = header
}

func (d *Draft) SetStyle(style json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.style = append(json.RawMessage(nil), style...)
}

// SetOptionFlags merges the given flags onto the current options, leaving
// untouched flags alone.
func (d *Draft) SetOptionFlags(patch form.OptionsPatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.options = form.MergeOptions(d.options, &patch)
}

func (d *Draft) SetBlocks(blocks []form.Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks = append([]form.Block(nil), blocks...)
}

func (d *Draft) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Title:   d.title,
		Header:  d.header,
		Style:   append(json.RawMessage(nil), d.style...),
		Options: d.options,
		Blocks:  append([]form.Block(nil), d.blocks...),
	}
}

// Patch converts the draft into the partial-update payload a save sends.
// Every field is included: a save persists the draft as the author sees it.
func (s Snapshot) Patch() form.Patch {
	title := s.Title
	header := s.Header
	public := s.Options.PublicResponses
	locked := s.Options.LockedResponses
	blocks := s.Blocks
	if blocks == nil {
		blocks = []form.Block{}
	}
	return form.Patch{
		Title:  &title,
		Header: &header,
		Style:  s.Style,
		Options: &form.OptionsPatch{
			PublicResponses: &public,
			LockedResponses: &locked,
		},
		Blocks: blocks,
	}
}
