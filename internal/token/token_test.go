package token

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/guardtrack/patrolsync/internal/remote"
)

func testTokenStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "auth", "token.json"))
}

// TestSaveLoad tests the round trip and file permissions.
func TestSaveLoad(t *testing.T) {
	s := testTokenStore(t)

	tok := remote.AuthToken{
		AccessToken: "tok-abc",
		GuardID:     "g-1",
		ExpiresAt:   time.Now().Add(12 * time.Hour).UTC(),
	}
	if err := s.Save(tok); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.AccessToken != tok.AccessToken || got.GuardID != tok.GuardID {
		t.Errorf("Load() = %+v, want %+v", got, tok)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(s.path)
		if err != nil {
			t.Fatalf("stat token file: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("token file mode = %o, want 0600", info.Mode().Perm())
		}
	}
}

// TestLoad_Missing tests the not-logged-in sentinel.
func TestLoad_Missing(t *testing.T) {
	s := testTokenStore(t)

	if _, err := s.Load(); !errors.Is(err, ErrNoToken) {
		t.Errorf("Load() = %v, want ErrNoToken", err)
	}
}

// TestClear tests deletion, including clearing an absent token.
func TestClear(t *testing.T) {
	s := testTokenStore(t)

	if err := s.Clear(); err != nil {
		t.Errorf("Clear() on absent token failed: %v", err)
	}

	if err := s.Save(remote.AuthToken{AccessToken: "tok"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNoToken) {
		t.Errorf("Load() after Clear() = %v, want ErrNoToken", err)
	}
}

// TestToken_Expired tests that an expired token reads as not logged in.
func TestToken_Expired(t *testing.T) {
	s := testTokenStore(t)
	ctx := context.Background()

	if err := s.Save(remote.AuthToken{
		AccessToken: "tok-old",
		ExpiresAt:   time.Now().Add(-time.Minute).UTC(),
	}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if _, err := s.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() with expired token = %v, want ErrNoToken", err)
	}

	if err := s.Save(remote.AuthToken{
		AccessToken: "tok-fresh",
		ExpiresAt:   time.Now().Add(time.Hour).UTC(),
	}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := s.Token(ctx)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if got != "tok-fresh" {
		t.Errorf("Token() = %q, want tok-fresh", got)
	}
}

// TestStatic tests the fixed-token source.
func TestStatic(t *testing.T) {
	ctx := context.Background()

	if got, err := Static("abc").Token(ctx); err != nil || got != "abc" {
		t.Errorf("Static Token() = %q, %v", got, err)
	}
	if _, err := Static("").Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty Static Token() = %v, want ErrNoToken", err)
	}
}
