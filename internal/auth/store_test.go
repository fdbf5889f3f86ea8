package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SeedAndResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, "key-123", "jwt-token", "angelone"); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	sess, err := s.Resolve(ctx, "key-123")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess.AuthToken != "jwt-token" || sess.Broker != "angelone" {
		t.Errorf("got %+v", sess)
	}
}

func TestStore_ResolveUnknownKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Resolve(context.Background(), "no-such-key")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestStore_ResolveEmptyKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Resolve(context.Background(), "")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestStore_SeedOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, "key-123", "old-token", "angelone"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := s.Seed(ctx, "key-123", "new-token", "angelone"); err != nil {
		t.Fatalf("Seed overwrite: %v", err)
	}

	sess, err := s.Resolve(ctx, "key-123")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess.AuthToken != "new-token" {
		t.Errorf("auth token: got %q, want refreshed token", sess.AuthToken)
	}
}

// The plaintext key must never be stored.
func TestStore_KeysStoredHashed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, "super-secret-key", "jwt", "angelone"); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var n int
	row := s.DB().QueryRow(`SELECT COUNT(*) FROM auth_sessions WHERE api_key_hash = ?`, "super-secret-key")
	if err := row.Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Error("plaintext API key found in auth_sessions")
	}
}
