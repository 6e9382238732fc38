package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"formloom/api/internal/form"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ── Forms ──

func (s *PostgresStore) InsertForm(ctx context.Context, item form.Form) error {
	header, style, options, blocks, err := encodeFormColumns(item)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forms (id, workspace, title, header, style, options, blocks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, item.ID, item.Workspace, item.Title, header, style, options, blocks)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetForm(ctx context.Context, id string) (form.Form, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace, title, header, style, options, blocks, created_at, updated_at
		FROM forms WHERE id = $1
	`, id)
	return scanForm(row)
}

func (s *PostgresStore) ListFormsByWorkspace(ctx context.Context, workspace string) ([]form.Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace, title, header, style, options, blocks, created_at, updated_at
		FROM forms WHERE workspace = $1
		ORDER BY updated_at DESC
	`, workspace)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var items []form.Form
	for rows.Next() {
		item, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateForm replaces the authorable fields of a form. The workspace column
// is never part of the SET list; ownership is immutable.
func (s *PostgresStore) UpdateForm(ctx context.Context, item form.Form) error {
	header, style, options, blocks, err := encodeFormColumns(item)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE forms
		SET title = $2, header = $3, style = $4, options = $5, blocks = $6, updated_at = NOW()
		WHERE id = $1
	`, item.ID, item.Title, header, style, options, blocks)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update form rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteForm removes a form only when the supplied workspace matches the
// owner. Responses are removed by the ON DELETE CASCADE constraint.
func (s *PostgresStore) DeleteForm(ctx context.Context, id, workspace string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM forms WHERE id = $1 AND workspace = $2
	`, id, workspace)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete form rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Responses ──

func (s *PostgresStore) InsertResponse(ctx context.Context, item form.Response) error {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("marshal response data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responses (id, form_id, created_time, data)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.FormID, item.CreatedTime, data)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListResponsesByForm(ctx context.Context, formID string) ([]form.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, created_time, data
		FROM responses WHERE form_id = $1
		ORDER BY id ASC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var items []form.Response
	for rows.Next() {
		var item form.Response
		var data []byte
		if err := rows.Scan(&item.ID, &item.FormID, &item.CreatedTime, &data); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal(data, &item.Data); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CountResponses(ctx context.Context, formID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses WHERE form_id = $1`, formID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return count, nil
}

// ── helpers ──

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (form.Form, error) {
	var item form.Form
	var header, style, options, blocks []byte
	var createdAt, updatedAt time.Time
	if err := row.Scan(&item.ID, &item.Workspace, &item.Title, &header, &style, &options, &blocks, &createdAt, &updatedAt); err != nil {
		return form.Form{}, err
	}
	if err := json.Unmarshal(header, &item.Header); err != nil {
		return form.Form{}, fmt.Errorf("decode form header: %w", err)
	}
	if len(style) > 0 {
		item.Style = append(json.RawMessage(nil), style...)
	}
	if err := json.Unmarshal(options, &item.Options); err != nil {
		return form.Form{}, fmt.Errorf("decode form options: %w", err)
	}
	if err := json.Unmarshal(blocks, &item.Blocks); err != nil {
		return form.Form{}, fmt.Errorf("decode form blocks: %w", err)
	}
	item.CreatedAt = createdAt.UnixMilli()
	item.UpdatedAt = updatedAt.UnixMilli()
	return item, nil
}

func encodeFormColumns(item form.Form) (header, style, options, blocks []byte, err error) {
	header, err = json.Marshal(item.Header)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal form header: %w", err)
	}
	style = item.Style
	if len(style) == 0 {
		style = []byte(`{}`)
	}
	options, err = json.Marshal(item.Options)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal form options: %w", err)
	}
	if item.Blocks == nil {
		item.Blocks = []form.Block{}
	}
	blocks, err = json.Marshal(item.Blocks)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal form blocks: %w", err)
	}
	return header, style, options, blocks, nil
}
