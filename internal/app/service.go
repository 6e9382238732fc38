package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"formloom/api/internal/auth"
	"formloom/api/internal/authpw"
	"formloom/api/internal/config"
	"formloom/api/internal/export"
	"formloom/api/internal/form"
	"formloom/api/internal/revision"
	"formloom/api/internal/search"
	"formloom/api/internal/session"
	"formloom/api/internal/store"
	"formloom/api/internal/util"

	"github.com/oklog/ulid/v2"
)

// Identity is the resolved authenticated caller. A nil *Identity means the
// caller is anonymous.
type Identity struct {
	SubjectID string
	Name      string
}

// Session is what a successful sign-in or refresh hands back to the client.
type Session struct {
	Token        string
	RefreshToken string
	SubjectID    string
	Name         string
	ExpiresAt    time.Time
}

// CreateFormInput is the publish payload for a new form.
type CreateFormInput struct {
	Title   string             `json:"title"`
	Header  form.Header        `json:"header"`
	Style   json.RawMessage    `json:"style,omitempty"`
	Options *form.OptionsPatch `json:"options,omitempty"`
	Blocks  []form.Block       `json:"blocks"`
}

type dataStore interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	InsertForm(ctx context.Context, item form.Form) error
	GetForm(ctx context.Context, id string) (form.Form, error)
	ListFormsByWorkspace(ctx context.Context, workspace string) ([]form.Form, error)
	UpdateForm(ctx context.Context, item form.Form) error
	DeleteForm(ctx context.Context, id, workspace string) error
	InsertResponse(ctx context.Context, item form.Response) error
	ListResponsesByForm(ctx context.Context, formID string) ([]form.Response, error)
	CountResponses(ctx context.Context, formID string) (int, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, data session.RefreshData, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.RefreshData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type prefsStore interface {
	Sidebar(ctx context.Context, subject string) (bool, error)
	SetSidebar(ctx context.Context, subject string, shown bool) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexForm(record search.FormRecord)
	DeleteForm(id string)
}

type revisionService interface {
	Record(item form.Form, author, message string) (revision.CommitInfo, error)
	History(formID string, limit int) ([]revision.CommitInfo, error)
	Snapshot(formID, hash string) (form.Form, error)
	Remove(formID string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	prefs     prefsStore
	accounts  *authpw.Service
	search    searchService
	revisions revisionService
}

func New(cfg config.Config, data dataStore, sessions sessionStore, prefs prefsStore, accounts *authpw.Service, searchSvc searchService, revisions revisionService) *Service {
	return &Service{
		cfg:       cfg,
		store:     data,
		sessions:  sessions,
		prefs:     prefs,
		accounts:  accounts,
		search:    searchSvc,
		revisions: revisions,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PublicHost() string {
	return s.cfg.PublicHost
}

// ── Accounts & sessions ──

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
	}
	return s.startSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken := util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refreshToken), session.RefreshData{
		SubjectID:   user.ID,
		DisplayName: user.DisplayName,
	}, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		SubjectID:    user.ID,
		Name:         user.DisplayName,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	data, err := s.sessions.LookupRefreshSession(ctx, auth.HashToken(refreshToken))
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	user, err := s.store.GetUserByID(ctx, data.SubjectID)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists", nil)
	}
	// Rotate: the old token stops working the moment a new one is issued.
	_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	return s.startSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// IdentityFromToken resolves a bearer token to the caller's identity.
func (s *Service) IdentityFromToken(token string) (*Identity, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return nil, err
	}
	return &Identity{SubjectID: claims.Sub, Name: claims.Name}, nil
}

// subjectOf maps an optional identity to the workspace subject used for
// ownership. Anonymous callers share the anonymous sentinel.
func subjectOf(identity *Identity) string {
	if identity == nil {
		return form.AnonymousWorkspace
	}
	return identity.SubjectID
}

// ── Forms ──

func (s *Service) CreateForm(ctx context.Context, identity *Identity, input CreateFormInput) (form.Form, error) {
	workspace := subjectOf(identity)

	options := form.MergeOptions(form.DefaultOptions(), input.Options)
	if identity == nil {
		// Without an account there is no dashboard to manage responses
		// from, so anonymous forms are always public and unlocked.
		options = form.AnonymousOptions()
	}

	item := form.Form{
		ID:        util.NewID("form"),
		Workspace: workspace,
		Title:     input.Title,
		Header:    input.Header,
		Style:     input.Style,
		Options:   options,
		Blocks:    input.Blocks,
	}
	if item.Blocks == nil {
		item.Blocks = []form.Block{}
	}

	if err := s.store.InsertForm(ctx, item); err != nil {
		return form.Form{}, fmt.Errorf("create form: %w", err)
	}

	if s.revisions != nil {
		if _, err := s.revisions.Record(item, workspace, "Publish form"); err != nil {
			return form.Form{}, fmt.Errorf("record initial revision: %w", err)
		}
	}
	if s.search != nil {
		s.search.IndexForm(search.FormRecord{ID: item.ID, Title: item.Title, Workspace: item.Workspace})
	}
	return item, nil
}

func (s *Service) GetForm(ctx context.Context, id string) (form.Form, error) {
	item, err := s.store.GetForm(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return form.Form{}, domainError(http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
	}
	if err != nil {
		return form.Form{}, fmt.Errorf("get form: %w", err)
	}
	return item, nil
}

func (s *Service) ListForms(ctx context.Context, identity *Identity, query string) ([]form.Form, error) {
	if identity == nil {
		return nil, domainError(http.StatusUnauthorized, "NOT_AUTHENTICATED", "Sign in to list forms", nil)
	}

	if q := strings.TrimSpace(query); q != "" && s.search != nil {
		response := s.search.Search(search.Query{Text: q, Workspace: identity.SubjectID})
		items := make([]form.Form, 0, len(response.Results))
		for _, hit := range response.Results {
			item, err := s.GetForm(ctx, hit.ID)
			if err != nil {
				continue
			}
			items = append(items, item)
		}
		return items, nil
	}

	items, err := s.store.ListFormsByWorkspace(ctx, identity.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return items, nil
}

// UpdateForm applies a partial replacement of a form's authorable fields.
// The patch type carries no workspace or id, so a payload naming either is
// ignored by construction; options merge flag by flag onto the stored value.
func (s *Service) UpdateForm(ctx context.Context, identity *Identity, id string, patch form.Patch) (form.Form, error) {
	item, err := s.GetForm(ctx, id)
	if err != nil {
		return form.Form{}, err
	}
	if item.Workspace != subjectOf(identity) {
		return form.Form{}, domainError(http.StatusForbidden, "UNAUTHORIZED", "You don't have permission to edit this form", nil)
	}

	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Header != nil {
		item.Header = *patch.Header
	}
	if len(patch.Style) > 0 {
		item.Style = patch.Style
	}
	item.Options = form.MergeOptions(item.Options, patch.Options)
	if patch.Blocks != nil {
		item.Blocks = patch.Blocks
	}

	if err := s.store.UpdateForm(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return form.Form{}, domainError(http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
		}
		return form.Form{}, fmt.Errorf("update form: %w", err)
	}

	if s.revisions != nil {
		if _, err := s.revisions.Record(item, item.Workspace, "Update form"); err != nil {
			return form.Form{}, fmt.Errorf("record revision: %w", err)
		}
	}
	if s.search != nil {
		s.search.IndexForm(search.FormRecord{ID: item.ID, Title: item.Title, Workspace: item.Workspace})
	}
	return item, nil
}

// DeleteForm removes a form. confirmWorkspace is the caller's confirmation
// payload and must match the stored owner, as must the caller's identity.
func (s *Service) DeleteForm(ctx context.Context, identity *Identity, id, confirmWorkspace string) error {
	item, err := s.GetForm(ctx, id)
	if err != nil {
		return err
	}
	if item.Workspace != subjectOf(identity) || item.Workspace != confirmWorkspace {
		return domainError(http.StatusForbidden, "UNAUTHORIZED", "You don't have permission to delete this form", nil)
	}

	if err := s.store.DeleteForm(ctx, id, confirmWorkspace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
		}
		return fmt.Errorf("delete form: %w", err)
	}

	if s.revisions != nil {
		_ = s.revisions.Remove(id)
	}
	if s.search != nil {
		s.search.DeleteForm(id)
	}
	return nil
}

// PublicForm is the fill-out projection served on the share link: the
// definition without its owning workspace.
func (s *Service) PublicForm(ctx context.Context, id string) (map[string]any, error) {
	item, err := s.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":      item.ID,
		"title":   item.Title,
		"header":  item.Header,
		"style":   item.Style,
		"options": item.Options,
		"blocks":  item.Blocks,
	}, nil
}

// ── Responses ──

func (s *Service) ListResponses(ctx context.Context, identity *Identity, formID string) ([]form.Response, error) {
	item, err := s.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !item.Options.PublicResponses && item.Workspace != subjectOf(identity) {
		return nil, domainError(http.StatusForbidden, "UNAUTHORIZED", "You don't have permission to view these responses", nil)
	}

	items, err := s.store.ListResponsesByForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if items == nil {
		items = []form.Response{}
	}
	return items, nil
}

// SubmitResponse appends a fill-out submission. Locked forms refuse new
// responses; existing ones are never touched.
func (s *Service) SubmitResponse(ctx context.Context, formID string, data form.Fields) (form.Response, error) {
	item, err := s.GetForm(ctx, formID)
	if err != nil {
		return form.Response{}, err
	}
	if item.Options.LockedResponses {
		return form.Response{}, domainError(http.StatusConflict, "RESPONSES_LOCKED", "This form is no longer accepting responses", nil)
	}

	response := form.Response{
		ID:          ulid.Make().String(),
		FormID:      formID,
		CreatedTime: time.Now().UnixMilli(),
		Data:        data,
	}
	if err := s.store.InsertResponse(ctx, response); err != nil {
		return form.Response{}, fmt.Errorf("submit response: %w", err)
	}
	return response, nil
}

// ExportResponses renders a form's responses as a downloadable file. Only the
// owner may export, regardless of the public-responses flag.
func (s *Service) ExportResponses(ctx context.Context, identity *Identity, formID string, format export.Format) (*export.Result, error) {
	item, err := s.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if item.Workspace != subjectOf(identity) {
		return nil, domainError(http.StatusForbidden, "UNAUTHORIZED", "You don't have permission to export these responses", nil)
	}

	responses, err := s.store.ListResponsesByForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	result, err := export.Responses(item, responses, format)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'csv' or 'pdf'", nil)
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusNotImplemented, "PDF_UNAVAILABLE", "PDF export is not available on this server", nil)
		}
		return nil, fmt.Errorf("export responses: %w", err)
	}
	return result, nil
}

// ── Revisions ──

func (s *Service) FormRevisions(ctx context.Context, identity *Identity, formID string, limit int) ([]revision.CommitInfo, error) {
	item, err := s.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if item.Workspace != subjectOf(identity) {
		return nil, domainError(http.StatusForbidden, "UNAUTHORIZED", "You don't have permission to view this form's history", nil)
	}
	if s.revisions == nil {
		return []revision.CommitInfo{}, nil
	}
	history, err := s.revisions.History(formID, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return history, nil
}

// RevisionSnapshot returns the form definition as it was at a given commit.
func (s *Service) RevisionSnapshot(ctx context.Context, identity *Identity, formID, hash string) (form.Form, error) {
	item, err := s.GetForm(ctx, formID)
	if err != nil {
		return form.Form{}, err
	}
	if item.Workspace != subjectOf(identity) {
		return form.Form{}, domainError(http.StatusForbidden, "UNAUTHORIZED", "You don't have permission to view this form's history", nil)
	}
	if s.revisions == nil {
		return form.Form{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	snapshot, err := s.revisions.Snapshot(formID, hash)
	if err != nil {
		return form.Form{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return snapshot, nil
}

// ── Preferences ──

func (s *Service) Sidebar(ctx context.Context, identity *Identity) (bool, error) {
	if s.prefs == nil {
		return false, nil
	}
	shown, err := s.prefs.Sidebar(ctx, subjectOf(identity))
	if err != nil {
		return false, fmt.Errorf("read sidebar pref: %w", err)
	}
	return shown, nil
}

func (s *Service) SetSidebar(ctx context.Context, identity *Identity, shown bool) error {
	if s.prefs == nil {
		return nil
	}
	if err := s.prefs.SetSidebar(ctx, subjectOf(identity), shown); err != nil {
		return fmt.Errorf("write sidebar pref: %w", err)
	}
	return nil
}
