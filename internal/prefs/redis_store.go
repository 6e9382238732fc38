// Package prefs persists per-subject editor preferences. The sidebar flag is
// shared by the create and edit screens and must survive restarts, so it
// lives in Redis rather than in the authoring session.
package prefs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const sidebarKeyPrefix = "prefs:sidebar:"

type Store struct {
	client *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewStoreWithClient(redis.NewClient(opts)), nil
}

func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Sidebar returns the stored sidebar visibility for a subject. Unset is
// reported as hidden, matching a fresh authoring session.
func (s *Store) Sidebar(ctx context.Context, subject string) (bool, error) {
	value, err := s.client.Get(ctx, sidebarKeyPrefix+subject).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sidebar pref: %w", err)
	}
	shown, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("decode sidebar pref: %w", err)
	}
	return shown, nil
}

// SetSidebar stores the sidebar visibility. Writes are last-write-wins; the
// flag has no history worth keeping.
func (s *Store) SetSidebar(ctx context.Context, subject string, shown bool) error {
	if err := s.client.Set(ctx, sidebarKeyPrefix+subject, strconv.FormatBool(shown), 0).Err(); err != nil {
		return fmt.Errorf("write sidebar pref: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
