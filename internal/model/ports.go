package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the orchestration core from concrete
// collaborators (SQLite auth store, Redis event publisher, SQLite journal)
// so the Orchestrator stays testable in isolation.

// Session is the result of resolving an API key: the broker session token
// plus the broker identifier it belongs to. Never persisted by the core.
type Session struct {
	AuthToken string
	Broker    string
}

// Authenticator maps an opaque API key to a broker session.
type Authenticator interface {
	// Resolve returns an error for unknown or revoked keys.
	Resolve(ctx context.Context, apiKey string) (Session, error)
}

// OrderLogger is the async order-log sink. Log must never block the caller;
// implementations enqueue and persist from their own goroutine.
type OrderLogger interface {
	Log(apiType string, request, response any)
}

// EventPublisher publishes bracket order progress events, keyed by symbol.
// Best-effort: a failed publish must not affect order placement.
type EventPublisher interface {
	Publish(ctx context.Context, ev BracketOrderEvent) error
}
