// Package formclient is the Go client for the forms API. It wraps the HTTP
// surface and keeps per-form read-through caches whose fetch handles report
// (value, loading, error) plus a generation counter, which is what the editor
// packages key their seeding and gating off.
package formclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"formloom/api/internal/form"
)

// ErrNotFound marks a 404 from the API, wrapped inside *APIError.
var ErrNotFound = errors.New("not found")

// APIError is the decoded error envelope the API returns on failures.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	token   string
	forms   map[string]*FormHandle
	answers map[string]*ResponsesHandle
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		forms:   map[string]*FormHandle{},
		answers: map[string]*ResponsesHandle{},
	}
}

// SetToken installs the bearer token used on subsequent requests. An empty
// token makes the client anonymous again.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// ── Sessions ──

// Credentials is what sign-in and sign-up hand back.
type Credentials struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
}

func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/api/session/signup", map[string]any{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	}, &creds)
	if err != nil {
		return Credentials{}, err
	}
	c.SetToken(creds.Token)
	return creds, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/api/session/login", map[string]any{
		"email":    email,
		"password": password,
	}, &creds)
	if err != nil {
		return Credentials{}, err
	}
	c.SetToken(creds.Token)
	return creds, nil
}

// SessionInfo reports whether the current token is accepted and who it is.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
}

func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

// Subject is the workspace the current session owns forms under. Anonymous
// clients share the anonymous workspace.
func (c *Client) Subject(ctx context.Context) string {
	info, err := c.Session(ctx)
	if err != nil || !info.Authenticated {
		return form.AnonymousWorkspace
	}
	return info.UserID
}

// ── Form CRUD ──

// CreateFormInput mirrors the publish payload.
type CreateFormInput struct {
	Title   string             `json:"title"`
	Header  form.Header        `json:"header"`
	Style   json.RawMessage    `json:"style,omitempty"`
	Options *form.OptionsPatch `json:"options,omitempty"`
	Blocks  []form.Block       `json:"blocks"`
}

// Created is the publish result: the stored form and its share link.
type Created struct {
	Form        form.Form `json:"form"`
	ViewformURL string    `json:"viewformUrl"`
}

func (c *Client) CreateForm(ctx context.Context, input CreateFormInput) (Created, error) {
	var created Created
	if err := c.do(ctx, http.MethodPost, "/api/forms", input, &created); err != nil {
		return Created{}, err
	}
	return created, nil
}

func (c *Client) FetchForm(ctx context.Context, id string) (form.Form, error) {
	var envelope struct {
		Form form.Form `json:"form"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/forms/"+id, nil, &envelope); err != nil {
		return form.Form{}, err
	}
	return envelope.Form, nil
}

func (c *Client) UpdateForm(ctx context.Context, id string, patch form.Patch) (form.Form, error) {
	var envelope struct {
		Form form.Form `json:"form"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/forms/"+id, patch, &envelope); err != nil {
		return form.Form{}, err
	}
	return envelope.Form, nil
}

func (c *Client) DeleteForm(ctx context.Context, id, workspace string) error {
	return c.do(ctx, http.MethodDelete, "/api/forms/"+id+"/delete", map[string]any{
		"workspace": workspace,
	}, nil)
}

func (c *Client) ListForms(ctx context.Context, query string) ([]form.Form, error) {
	path := "/api/forms"
	if q := strings.TrimSpace(query); q != "" {
		path += "?q=" + q
	}
	var envelope struct {
		Forms []form.Form `json:"forms"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Forms, nil
}

// ── Responses ──

func (c *Client) FetchResponses(ctx context.Context, formID string) ([]form.Response, error) {
	var envelope struct {
		Responses []form.Response `json:"responses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/forms/"+formID+"/responses", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Responses, nil
}

func (c *Client) SubmitResponse(ctx context.Context, formID string, data form.Fields) (form.Response, error) {
	var envelope struct {
		Response form.Response `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/forms/"+formID+"/responses", data, &envelope); err != nil {
		return form.Response{}, err
	}
	return envelope.Response, nil
}

// ── Preferences ──

func (c *Client) SidebarShown(ctx context.Context) (bool, error) {
	var envelope struct {
		SidebarShown bool `json:"sidebarShown"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prefs", nil, &envelope); err != nil {
		return false, err
	}
	return envelope.SidebarShown, nil
}

func (c *Client) SetSidebarShown(ctx context.Context, shown bool) error {
	return c.do(ctx, http.MethodPut, "/api/prefs", map[string]any{"sidebarShown": shown}, nil)
}

// ── Cached fetch handles ──

// Form returns the cached fetch handle for a form id, creating it on first
// use. The handle starts unloaded; call Load to resolve it.
func (c *Client) Form(id string) *FormHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.forms[id]
	if !ok {
		handle = &FormHandle{client: c, id: id}
		c.forms[id] = handle
	}
	return handle
}

// Responses returns the cached fetch handle for a form's responses.
func (c *Client) Responses(formID string) *ResponsesHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.answers[formID]
	if !ok {
		handle = &ResponsesHandle{client: c, formID: formID}
		c.answers[formID] = handle
	}
	return handle
}

// Invalidate drops the cached value for a form id so the next Load refetches.
// Mutation flows call this only after the server accepted the write.
func (c *Client) Invalidate(id string) {
	c.mu.Lock()
	formHandle := c.forms[id]
	responsesHandle := c.answers[id]
	c.mu.Unlock()
	if formHandle != nil {
		formHandle.invalidate()
	}
	if responsesHandle != nil {
		responsesHandle.invalidate()
	}
}

// ── Transport ──

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "SERVER_ERROR"}
		var envelope struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			if envelope.Code != "" {
				apiErr.Code = envelope.Code
			}
			apiErr.Message = envelope.Error
		}
		return apiErr
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
