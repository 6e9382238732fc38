package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"formloom/api/internal/config"
	"formloom/api/internal/form"
	"formloom/api/internal/session"
	"formloom/api/internal/store"
)

// fakeStore is an in-memory dataStore. Function fields override individual
// operations when a test needs to observe or fail a call.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]store.User
	forms     map[string]form.Form
	responses map[string][]form.Response

	updateFormFn func(ctx context.Context, item form.Form) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]store.User{},
		forms:     map[string]form.Form{},
		responses: map[string][]form.Response{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) InsertForm(ctx context.Context, item form.Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms[item.ID] = item
	return nil
}

func (f *fakeStore) GetForm(ctx context.Context, id string) (form.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.forms[id]
	if !ok {
		return form.Form{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListFormsByWorkspace(ctx context.Context, workspace string) ([]form.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []form.Form
	for _, item := range f.forms {
		if item.Workspace == workspace {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) UpdateForm(ctx context.Context, item form.Form) error {
	if f.updateFormFn != nil {
		return f.updateFormFn(ctx, item)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.forms[item.ID]; !ok {
		return sql.ErrNoRows
	}
	f.forms[item.ID] = item
	return nil
}

func (f *fakeStore) DeleteForm(ctx context.Context, id, workspace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.forms[id]
	if !ok || item.Workspace != workspace {
		return sql.ErrNoRows
	}
	delete(f.forms, id)
	return nil
}

func (f *fakeStore) InsertResponse(ctx context.Context, item form.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[item.FormID] = append(f.responses[item.FormID], item)
	return nil
}

func (f *fakeStore) ListResponsesByForm(ctx context.Context, formID string) ([]form.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]form.Response(nil), f.responses[formID]...), nil
}

func (f *fakeStore) CountResponses(ctx context.Context, formID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses[formID]), nil
}

type fakeSessions struct {
	mu   sync.Mutex
	data map[string]session.RefreshData
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: map[string]session.RefreshData{}}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash string, data session.RefreshData, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[tokenHash] = data
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (session.RefreshData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[tokenHash]
	if !ok {
		return session.RefreshData{}, sql.ErrNoRows
	}
	return data, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, tokenHash)
	return nil
}

type fakePrefs struct {
	mu   sync.Mutex
	data map[string]bool
}

func newFakePrefs() *fakePrefs { return &fakePrefs{data: map[string]bool{}} }

func (f *fakePrefs) Sidebar(ctx context.Context, subject string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[subject], nil
}

func (f *fakePrefs) SetSidebar(ctx context.Context, subject string, shown bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[subject] = shown
	return nil
}

func testConfig() config.Config {
	return config.Config{
		PublicHost:  "https://forms.example.com",
		TokenSecret: "test-secret",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
		CORSOrigin:  "*",
	}
}
