package editor

import (
	"sync"

	"formloom/api/internal/formclient"
)

// Syncer seeds a draft from fetch resolutions. Each (form id, generation)
// pair seeds at most once: re-observing the same resolution is a no-op, and a
// refetched form (new generation after invalidation) seeds again so the draft
// tracks the server copy.
type Syncer struct {
	draft *Draft

	mu        sync.Mutex
	seededID  string
	seededGen uint64
	hasSeeded bool
}

func NewSyncer(draft *Draft) *Syncer {
	return &Syncer{draft: draft}
}

// Observe inspects a fetch snapshot and seeds the draft when it carries a
// resolution not yet applied. Loading and error states never seed. Reports
// whether a seed happened.
func (s *Syncer) Observe(id string, state formclient.FormState) bool {
	if state.Loading || state.Err != nil || state.Form == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSeeded && s.seededID == id && s.seededGen == state.Generation {
		return false
	}
	s.draft.Seed(*state.Form)
	s.seededID = id
	s.seededGen = state.Generation
	s.hasSeeded = true
	return true
}

// Forget clears the seeding record, e.g. when the editor switches forms.
func (s *Syncer) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasSeeded = false
	s.seededID = ""
	s.seededGen = 0
}
