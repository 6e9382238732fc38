package editor

import (
	"context"
	"errors"
	"sync"

	"formloom/api/internal/form"
	"formloom/api/internal/formclient"
)

// ErrMutationInFlight is returned when a save, publish, or delete is started
// while another one has not settled. The second attempt is rejected rather
// than queued.
var ErrMutationInFlight = errors.New("mutation already in flight")

// Notifier receives the three states of a mutation: started, then exactly one
// of succeeded or failed.
type Notifier interface {
	MutationStarted(label string)
	MutationSucceeded(label string)
	MutationFailed(label string, err error)
}

// Navigator is where the orchestrator sends the session after a mutation
// changes which form it is on.
type Navigator interface {
	OpenEditor(formID string)
	OpenDashboard()
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) MutationStarted(string)       {}
func (NopNotifier) MutationSucceeded(string)     {}
func (NopNotifier) MutationFailed(string, error) {}

// Orchestrator runs form mutations: it guards against double submission,
// drives the notifier through the started/succeeded/failed states, and
// invalidates the client's cache only after the server accepted a write, so
// a failed save leaves the cached copy untouched.
type Orchestrator struct {
	client    *formclient.Client
	notifier  Notifier
	navigator Navigator

	mu       sync.Mutex
	inFlight bool
}

func NewOrchestrator(client *formclient.Client, notifier Notifier, navigator Navigator) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{client: client, notifier: notifier, navigator: navigator}
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return false
	}
	o.inFlight = true
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
}

// Save pushes the draft to the server as a partial update of the form.
func (o *Orchestrator) Save(ctx context.Context, formID string, draft *Draft) (form.Form, error) {
	if !o.begin() {
		return form.Form{}, ErrMutationInFlight
	}
	defer o.end()

	const label = "save"
	o.notifier.MutationStarted(label)

	updated, err := o.client.UpdateForm(ctx, formID, draft.Snapshot().Patch())
	if err != nil {
		o.notifier.MutationFailed(label, err)
		return form.Form{}, err
	}

	o.client.Invalidate(formID)
	o.notifier.MutationSucceeded(label)
	return updated, nil
}

// Publish creates a new form from the draft and navigates into its editor.
func (o *Orchestrator) Publish(ctx context.Context, draft *Draft) (formclient.Created, error) {
	if !o.begin() {
		return formclient.Created{}, ErrMutationInFlight
	}
	defer o.end()

	const label = "publish"
	o.notifier.MutationStarted(label)

	snapshot := draft.Snapshot()
	public := snapshot.Options.PublicResponses
	locked := snapshot.Options.LockedResponses
	created, err := o.client.CreateForm(ctx, formclient.CreateFormInput{
		Title:  snapshot.Title,
		Header: snapshot.Header,
		Style:  snapshot.Style,
		Options: &form.OptionsPatch{
			PublicResponses: &public,
			LockedResponses: &locked,
		},
		Blocks: snapshot.Blocks,
	})
	if err != nil {
		o.notifier.MutationFailed(label, err)
		return formclient.Created{}, err
	}

	o.notifier.MutationSucceeded(label)
	if o.navigator != nil {
		o.navigator.OpenEditor(created.Form.ID)
	}
	return created, nil
}

// Delete removes the form after the workspace confirmation and sends the
// session back to the dashboard.
func (o *Orchestrator) Delete(ctx context.Context, formID, workspace string) error {
	if !o.begin() {
		return ErrMutationInFlight
	}
	defer o.end()

	const label = "delete"
	o.notifier.MutationStarted(label)

	if err := o.client.DeleteForm(ctx, formID, workspace); err != nil {
		o.notifier.MutationFailed(label, err)
		return err
	}

	o.client.Invalidate(formID)
	o.notifier.MutationSucceeded(label)
	if o.navigator != nil {
		o.navigator.OpenDashboard()
	}
	return nil
}
