package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"formloom/api/internal/authpw"
	"formloom/api/internal/form"
)

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	service := New(testConfig(), fs, newFakeSessions(), newFakePrefs(), authpw.NewService(fs), nil, nil)
	server := httptest.NewServer(NewHTTPServer(service, nil, "*").Handler())
	t.Cleanup(server.Close)
	return server, fs
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func signUp(t *testing.T, baseURL, email string) string {
	t.Helper()
	resp, payload := doJSON(t, http.MethodPost, baseURL+"/api/session/signup", "", map[string]any{
		"email":       email,
		"password":    "correct-horse",
		"displayName": "Casey",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, payload %v", resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("signup returned no token")
	}
	return token
}

func createForm(t *testing.T, baseURL, token string, body map[string]any) string {
	t.Helper()
	resp, payload := doJSON(t, http.MethodPost, baseURL+"/api/forms", token, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create form status = %d, payload %v", resp.StatusCode, payload)
	}
	created, _ := payload["form"].(map[string]any)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("create form returned no id")
	}
	return id
}

func TestAnonymousCreateForcesPublicUnlocked(t *testing.T) {
	server, fs := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/forms", "", map[string]any{
		"title":   "Party RSVP",
		"options": map[string]any{"publicResponses": false, "lockedResponses": true},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, payload %v", resp.StatusCode, payload)
	}

	created := payload["form"].(map[string]any)
	id := created["id"].(string)
	stored := fs.forms[id]
	if stored.Workspace != form.AnonymousWorkspace {
		t.Fatalf("workspace = %q, want %q", stored.Workspace, form.AnonymousWorkspace)
	}
	if !stored.Options.PublicResponses || stored.Options.LockedResponses {
		t.Fatalf("anonymous options not forced: %+v", stored.Options)
	}

	viewformURL, _ := payload["viewformUrl"].(string)
	want := fmt.Sprintf("https://forms.example.com/%s/viewform", id)
	if viewformURL != want {
		t.Fatalf("viewformUrl = %q, want %q", viewformURL, want)
	}
}

func TestListFormsRequiresSession(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	createForm(t, server.URL, token, map[string]any{"title": "Quiz"})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/forms", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authed list status = %d, payload %v", resp.StatusCode, payload)
	}
	forms, _ := payload["forms"].([]any)
	if len(forms) != 1 {
		t.Fatalf("forms = %d, want 1", len(forms))
	}

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/forms", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", resp.StatusCode)
	}
}

func TestPatchMergesOptionFlags(t *testing.T) {
	server, fs := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{
		"title":   "Survey",
		"options": map[string]any{"publicResponses": true},
	})

	resp, payload := doJSON(t, http.MethodPatch, server.URL+"/api/forms/"+id, token, map[string]any{
		"options": map[string]any{"lockedResponses": true},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, payload %v", resp.StatusCode, payload)
	}

	stored := fs.forms[id]
	if !stored.Options.PublicResponses {
		t.Fatal("patch of lockedResponses clobbered publicResponses")
	}
	if !stored.Options.LockedResponses {
		t.Fatal("lockedResponses not applied")
	}
}

func TestPatchCannotReassignWorkspace(t *testing.T) {
	server, fs := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Survey"})
	owner := fs.forms[id].Workspace

	resp, _ := doJSON(t, http.MethodPatch, server.URL+"/api/forms/"+id, token, map[string]any{
		"title":     "Renamed",
		"workspace": "someone-else",
		"id":        "form_other",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	stored := fs.forms[id]
	if stored.Workspace != owner {
		t.Fatalf("workspace changed to %q", stored.Workspace)
	}
	if stored.Title != "Renamed" {
		t.Fatalf("title = %q, want Renamed", stored.Title)
	}
}

func TestPatchByNonOwnerForbidden(t *testing.T) {
	server, _ := newTestServer(t)
	owner := signUp(t, server.URL, "owner@example.com")
	intruder := signUp(t, server.URL, "intruder@example.com")
	id := createForm(t, server.URL, owner, map[string]any{"title": "Private"})

	resp, _ := doJSON(t, http.MethodPatch, server.URL+"/api/forms/"+id, intruder, map[string]any{
		"title": "Hijacked",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestDeleteRequiresWorkspaceConfirmation(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Doomed"})

	resp, _ := doJSON(t, http.MethodDelete, server.URL+"/api/forms/"+id+"/delete", token, map[string]any{
		"workspace": "wrong-workspace",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("mismatched confirmation status = %d, want 403", resp.StatusCode)
	}

	// Fetch the real workspace and confirm with it.
	_, payload := doJSON(t, http.MethodGet, server.URL+"/api/forms/"+id, "", nil)
	workspace := payload["form"].(map[string]any)["workspace"].(string)

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/forms/"+id+"/delete", token, map[string]any{
		"workspace": workspace,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/forms/"+id, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestLockedFormRejectsNewResponses(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Poll"})

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/forms/"+id+"/responses", "", map[string]any{
		"answer": "yes",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201", resp.StatusCode)
	}

	doJSON(t, http.MethodPatch, server.URL+"/api/forms/"+id, token, map[string]any{
		"options": map[string]any{"lockedResponses": true},
	})

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/forms/"+id+"/responses", "", map[string]any{
		"answer": "too late",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("locked submit status = %d, want 409", resp.StatusCode)
	}

	// The earlier response survived the lock.
	_, payload := doJSON(t, http.MethodGet, server.URL+"/api/forms/"+id+"/responses", token, nil)
	responses, _ := payload["responses"].([]any)
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
}

func TestResponseVisibilityFollowsPublicFlag(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Private poll"})

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/forms/"+id+"/responses", "", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous read of private responses status = %d, want 403", resp.StatusCode)
	}

	doJSON(t, http.MethodPatch, server.URL+"/api/forms/"+id, token, map[string]any{
		"options": map[string]any{"publicResponses": true},
	})

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/forms/"+id+"/responses", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public responses status = %d, want 200", resp.StatusCode)
	}
}

func TestViewformOmitsWorkspace(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Share me"})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/"+id+"/viewform", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewform status = %d", resp.StatusCode)
	}
	if _, present := payload["workspace"]; present {
		t.Fatal("viewform payload leaks workspace")
	}
	if payload["title"] != "Share me" {
		t.Fatalf("title = %v", payload["title"])
	}
}

func TestSessionRefreshRotates(t *testing.T) {
	server, _ := newTestServer(t)

	_, payload := doJSON(t, http.MethodPost, server.URL+"/api/session/signup", "", map[string]any{
		"email":       "owner@example.com",
		"password":    "correct-horse",
		"displayName": "Casey",
	})
	refreshToken, _ := payload["refreshToken"].(string)
	if refreshToken == "" {
		t.Fatal("no refresh token issued")
	}

	resp, refreshed := doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{
		"refreshToken": refreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, payload %v", resp.StatusCode, refreshed)
	}
	if refreshed["refreshToken"] == refreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The first token stops working after rotation.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{
		"refreshToken": refreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestSidebarPrefRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")

	_, payload := doJSON(t, http.MethodGet, server.URL+"/api/prefs", token, nil)
	if shown, _ := payload["sidebarShown"].(bool); shown {
		t.Fatal("sidebar should default to hidden")
	}

	doJSON(t, http.MethodPut, server.URL+"/api/prefs", token, map[string]any{"sidebarShown": true})

	_, payload = doJSON(t, http.MethodGet, server.URL+"/api/prefs", token, nil)
	if shown, _ := payload["sidebarShown"].(bool); !shown {
		t.Fatal("sidebar pref did not persist")
	}
}

func TestExportResponsesCSV(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Export me"})
	doJSON(t, http.MethodPost, server.URL+"/api/forms/"+id+"/responses", "", map[string]any{"city": "Oslo"})

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/forms/"+id+"/responses/export?format=csv", "", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous export status = %d, want 403", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/forms/"+id+"/responses/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	ownerResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer ownerResp.Body.Close()
	if ownerResp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", ownerResp.StatusCode)
	}
	if ct := ownerResp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(ownerResp.Body)
	if !strings.HasPrefix(buf.String(), "Submitted,city") {
		t.Fatalf("csv = %q", buf.String())
	}
}

func TestResponseDataPreservesKeyOrder(t *testing.T) {
	server, _ := newTestServer(t)
	token := signUp(t, server.URL, "owner@example.com")
	id := createForm(t, server.URL, token, map[string]any{"title": "Ordered"})

	raw := `{"last":"z","first":"a","middle":"m"}`
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/forms/"+id+"/responses", strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	resp.Body.Close()

	listReq, _ := http.NewRequest(http.MethodGet, server.URL+"/api/forms/"+id+"/responses", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listResp, err := http.DefaultClient.Do(listReq)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer listResp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(listResp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := buf.String()
	if !strings.Contains(body, `"data":{"last":"z","first":"a","middle":"m"}`) {
		t.Fatalf("response data lost declared key order: %s", body)
	}
}
