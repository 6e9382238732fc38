package formclient

import (
	"context"
	"sync"

	"formloom/api/internal/form"
)

// FormState is a point-in-time snapshot of a form fetch. Generation counts
// resolutions: it starts at zero and bumps each time a Load settles with a
// fresh value, which is what consumers use to seed exactly once per
// resolution.
type FormState struct {
	Form       *form.Form
	Loading    bool
	Err        error
	Generation uint64
}

// FormHandle is a read-through cache entry for one form id.
type FormHandle struct {
	client *Client
	id     string

	mu         sync.Mutex
	form       *form.Form
	err        error
	loading    bool
	generation uint64
	stale      bool
}

func (h *FormHandle) ID() string { return h.id }

// Load resolves the handle. A cached value short-circuits unless the handle
// was invalidated; a concurrent Load observes loading=true via State and
// waits for nothing.
func (h *FormHandle) Load(ctx context.Context) FormState {
	h.mu.Lock()
	if h.form != nil && !h.stale {
		state := h.snapshotLocked()
		h.mu.Unlock()
		return state
	}
	h.loading = true
	h.mu.Unlock()

	item, err := h.client.FetchForm(ctx, h.id)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	h.stale = false
	if err != nil {
		h.form = nil
		h.err = err
	} else {
		h.form = &item
		h.err = nil
	}
	h.generation++
	return h.snapshotLocked()
}

// State reports the handle without touching the network.
func (h *FormHandle) State() FormState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *FormHandle) snapshotLocked() FormState {
	var item *form.Form
	if h.form != nil {
		copied := *h.form
		item = &copied
	}
	return FormState{
		Form:       item,
		Loading:    h.loading,
		Err:        h.err,
		Generation: h.generation,
	}
}

func (h *FormHandle) invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stale = true
}

// ResponsesState is a point-in-time snapshot of a responses fetch.
type ResponsesState struct {
	Responses  []form.Response
	Loaded     bool
	Loading    bool
	Err        error
	Generation uint64
}

// ResponsesHandle is a read-through cache entry for one form's responses.
type ResponsesHandle struct {
	client *Client
	formID string

	mu         sync.Mutex
	responses  []form.Response
	loaded     bool
	err        error
	loading    bool
	generation uint64
	stale      bool
}

func (h *ResponsesHandle) FormID() string { return h.formID }

func (h *ResponsesHandle) Load(ctx context.Context) ResponsesState {
	h.mu.Lock()
	if h.loaded && !h.stale {
		state := h.snapshotLocked()
		h.mu.Unlock()
		return state
	}
	h.loading = true
	h.mu.Unlock()

	items, err := h.client.FetchResponses(ctx, h.formID)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	h.stale = false
	if err != nil {
		h.responses = nil
		h.loaded = false
		h.err = err
	} else {
		h.responses = items
		h.loaded = true
		h.err = nil
	}
	h.generation++
	return h.snapshotLocked()
}

func (h *ResponsesHandle) State() ResponsesState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *ResponsesHandle) snapshotLocked() ResponsesState {
	return ResponsesState{
		Responses:  append([]form.Response(nil), h.responses...),
		Loaded:     h.loaded,
		Loading:    h.loading,
		Err:        h.err,
		Generation: h.generation,
	}
}

func (h *ResponsesHandle) invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stale = true
}
