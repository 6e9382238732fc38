// Package form holds the document model shared by the API server and the
// authoring client: form definitions, submitted responses, and the helpers
// that keep option flags and ownership consistent across both sides.
package form

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnonymousWorkspace is the ownership sentinel for forms published without a
// signed-in identity. Ownership is fixed at creation and never changes.
const AnonymousWorkspace = "anonymous"

type Header struct {
	Icon  string `json:"icon,omitempty"`
	Cover string `json:"cover,omitempty"`
}

type Options struct {
	PublicResponses bool `json:"publicResponses"`
	LockedResponses bool `json:"lockedResponses"`
}

// Block is an opaque unit of form content. Only the stable id is interpreted
// here; everything else travels as raw JSON between editor and storage.
type Block struct {
	ID  string
	Raw json.RawMessage
}

func (b Block) MarshalJSON() ([]byte, error) {
	if len(b.Raw) != 0 {
		return b.Raw, nil
	}
	return json.Marshal(map[string]string{"id": b.ID})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode block: %w", err)
	}
	b.ID = probe.ID
	b.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type Form struct {
	ID        string          `json:"id"`
	Workspace string          `json:"workspace"`
	Title     string          `json:"title"`
	Header    Header          `json:"header"`
	Style     json.RawMessage `json:"style,omitempty"`
	Options   Options         `json:"options"`
	Blocks    []Block         `json:"blocks"`
	CreatedAt int64           `json:"__createdtime__,omitempty"`
	UpdatedAt int64           `json:"__updatedtime__,omitempty"`
}

// OptionsPatch carries only the flags a caller actually set, so an update
// that flips one flag leaves its siblings alone.
type OptionsPatch struct {
	PublicResponses *bool `json:"publicResponses,omitempty"`
	LockedResponses *bool `json:"lockedResponses,omitempty"`
}

// Patch is a partial replacement of a form's authorable fields. Nil fields
// are left untouched. Workspace and id are deliberately absent: ownership and
// identity are immutable after creation.
type Patch struct {
	Title   *string         `json:"title,omitempty"`
	Header  *Header         `json:"header,omitempty"`
	Style   json.RawMessage `json:"style,omitempty"`
	Options *OptionsPatch   `json:"options,omitempty"`
	Blocks  []Block         `json:"blocks,omitempty"`
}

// Response is an immutable record of one fill-out submission. Data preserves
// the key order the filler's form declared, which is what the response table
// derives its columns from.
type Response struct {
	ID          string `json:"id"`
	FormID      string `json:"formId"`
	CreatedTime int64  `json:"__createdtime__"`
	Data        Fields `json:"data"`
}

func DefaultOptions() Options {
	return Options{PublicResponses: false, LockedResponses: false}
}

// AnonymousOptions are forced when a form is published without an identity:
// anyone may see responses, and responses start unlocked.
func AnonymousOptions() Options {
	return Options{PublicResponses: true, LockedResponses: false}
}

// MergeOptions applies patch onto base flag by flag so that an update
// touching one option never clobbers its siblings.
func MergeOptions(base Options, patch *OptionsPatch) Options {
	merged := base
	if patch == nil {
		return merged
	}
	if patch.PublicResponses != nil {
		merged.PublicResponses = *patch.PublicResponses
	}
	if patch.LockedResponses != nil {
		merged.LockedResponses = *patch.LockedResponses
	}
	return merged
}

// DisplayTitle is the untitled fallback used anywhere a form is named.
func DisplayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled form"
	}
	return title
}

// ViewFormURL derives the public fill-out link for a form.
func ViewFormURL(host, formID string) string {
	host = strings.TrimRight(host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return fmt.Sprintf("%s/%s/viewform", host, formID)
}
