package form

import (
	"encoding/json"
	"testing"
)

func TestMergeOptionsPreservesSiblingFlags(t *testing.T) {
	base := Options{PublicResponses: true, LockedResponses: false}
	locked := true

	merged := MergeOptions(base, &OptionsPatch{LockedResponses: &locked})

	if !merged.PublicResponses {
		t.Fatalf("expected publicResponses to survive the merge")
	}
	if !merged.LockedResponses {
		t.Fatalf("expected lockedResponses to be updated")
	}
}

func TestMergeOptionsNilPatchIsIdentity(t *testing.T) {
	base := Options{PublicResponses: true, LockedResponses: true}
	if merged := MergeOptions(base, nil); merged != base {
		t.Fatalf("expected %+v, got %+v", base, merged)
	}
}

func TestBlockRoundTripKeepsRawContent(t *testing.T) {
	raw := `{"id":"blk_1","tag":"h1","value":"Hello","color":"text-black"}`

	var block Block
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
		t.Fatalf("unmarshal block: %v", err)
	}
	if block.ID != "blk_1" {
		t.Fatalf("expected block id blk_1, got %q", block.ID)
	}

	out, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("marshal block: %v", err)
	}
	if string(out) != raw {
		t.Fatalf("expected raw content to survive, got %s", out)
	}
}

func TestPatchDecodeDistinguishesAbsentOptions(t *testing.T) {
	var patch Patch
	if err := json.Unmarshal([]byte(`{"title":"Renamed"}`), &patch); err != nil {
		t.Fatalf("unmarshal patch: %v", err)
	}
	if patch.Title == nil || *patch.Title != "Renamed" {
		t.Fatalf("expected title patch, got %+v", patch.Title)
	}
	if patch.Options != nil {
		t.Fatalf("expected absent options to decode as nil")
	}

	var flagged Patch
	if err := json.Unmarshal([]byte(`{"options":{"lockedResponses":true}}`), &flagged); err != nil {
		t.Fatalf("unmarshal patch: %v", err)
	}
	if flagged.Options == nil || flagged.Options.LockedResponses == nil || !*flagged.Options.LockedResponses {
		t.Fatalf("expected lockedResponses flag, got %+v", flagged.Options)
	}
	if flagged.Options.PublicResponses != nil {
		t.Fatalf("expected untouched publicResponses to decode as nil")
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := DisplayTitle("  "); got != "Untitled form" {
		t.Fatalf("expected untitled fallback, got %q", got)
	}
	if got := DisplayTitle("Customer survey"); got != "Customer survey" {
		t.Fatalf("expected title to pass through, got %q", got)
	}
}

func TestViewFormURL(t *testing.T) {
	if got := ViewFormURL("forms.example.com", "form_abc"); got != "https://forms.example.com/form_abc/viewform" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := ViewFormURL("http://localhost:8788/", "form_abc"); got != "http://localhost:8788/form_abc/viewform" {
		t.Fatalf("unexpected url %q", got)
	}
}
