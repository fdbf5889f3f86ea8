// Package auth resolves gateway API keys to broker sessions. Keys are
// stored as SHA-256 digests; the plaintext key exists only in the request.
package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-gatewayv1/internal/model"
)

// ErrInvalidAPIKey is returned for unknown, empty, or revoked API keys.
var ErrInvalidAPIKey = errors.New("invalid API key or authentication failed")

// Store maps API keys to (auth token, broker id) pairs. SQLite-backed with
// a read-through cache so the hot path avoids a query per order.
type Store struct {
	mu    sync.RWMutex
	db    *sql.DB
	cache map[string]model.Session // keyed by key digest
}

// NewStore opens (or creates) the auth session database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS auth_sessions (
		api_key_hash TEXT PRIMARY KEY,
		auth_token   TEXT NOT NULL,
		broker       TEXT NOT NULL,
		updated_at   DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[auth] opened session store at %s", dbPath)
	return &Store{db: db, cache: make(map[string]model.Session)}, nil
}

// Resolve maps an API key to its broker session.
func (s *Store) Resolve(ctx context.Context, apiKey string) (model.Session, error) {
	if apiKey == "" {
		return model.Session{}, ErrInvalidAPIKey
	}
	digest := hashKey(apiKey)

	s.mu.RLock()
	sess, ok := s.cache[digest]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT auth_token, broker FROM auth_sessions WHERE api_key_hash = ?`, digest)
	if err := row.Scan(&sess.AuthToken, &sess.Broker); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrInvalidAPIKey
		}
		return model.Session{}, err
	}
	if sess.AuthToken == "" || sess.Broker == "" {
		return model.Session{}, ErrInvalidAPIKey
	}

	s.mu.Lock()
	s.cache[digest] = sess
	s.mu.Unlock()
	return sess, nil
}

// Seed upserts a session for an API key. Used at startup (broker login
// bootstrap) and by operational tooling.
func (s *Store) Seed(ctx context.Context, apiKey, authToken, brokerID string) error {
	digest := hashKey(apiKey)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (api_key_hash, auth_token, broker, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(api_key_hash) DO UPDATE SET
		   auth_token = excluded.auth_token,
		   broker     = excluded.broker,
		   updated_at = excluded.updated_at`,
		digest, authToken, brokerID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[digest] = model.Session{AuthToken: authToken, Broker: brokerID}
	s.mu.Unlock()
	return nil
}

// DB returns the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the session database.
func (s *Store) Close() error { return s.db.Close() }

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
