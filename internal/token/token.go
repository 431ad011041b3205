// Package token stores the device's bearer token between runs.
//
// The token lives in a mode-0600 JSON file under the data directory. The
// sync core only reads it; obtaining and refreshing tokens is the login
// flow's job.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guardtrack/patrolsync/internal/remote"
)

// ErrNoToken is returned when no token has been saved on this device.
var ErrNoToken = errors.New("not logged in")

// Store persists the auth token to a file.
type Store struct {
	path string
}

// NewStore creates a token store rooted at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the token with owner-only permissions.
func (s *Store) Save(tok remote.AuthToken) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Load reads the saved token. Returns ErrNoToken if none exists.
func (s *Store) Load() (remote.AuthToken, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return remote.AuthToken{}, ErrNoToken
	}
	if err != nil {
		return remote.AuthToken{}, fmt.Errorf("read token file: %w", err)
	}

	var tok remote.AuthToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return remote.AuthToken{}, fmt.Errorf("parse token file: %w", err)
	}
	return tok, nil
}

// Clear deletes the saved token. Clearing an absent token is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Token implements remote.TokenSource. An expired token is reported the
// same as a missing one; re-authentication happens outside the sync core.
func (s *Store) Token(ctx context.Context) (string, error) {
	tok, err := s.Load()
	if err != nil {
		return "", err
	}
	if tok.Expired(time.Now()) {
		return "", fmt.Errorf("token expired at %s: %w", tok.ExpiresAt.Format(time.RFC3339), ErrNoToken)
	}
	return tok.AccessToken, nil
}

// Static is a fixed-token source for tests and scripted use.
type Static string

// Token implements remote.TokenSource.
func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}
