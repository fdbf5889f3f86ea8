package broker

import (
	"errors"
	"sort"
	"sync"
)

// ErrBrokerNotFound is returned by Resolve for unknown broker identifiers.
// Maps to HTTP 404 at the transport boundary.
var ErrBrokerNotFound = errors.New("broker-specific module not found")

// Registry is a static broker-id → adapter mapping populated at startup.
// Safe for concurrent Resolve calls from request handlers.
type Registry struct {
	mu      sync.RWMutex
	brokers map[string]Broker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{brokers: make(map[string]Broker)}
}

// Register adds an adapter under its own Name. Later registrations under
// the same name replace earlier ones.
func (r *Registry) Register(b Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brokers[b.Name()] = b
}

// Resolve looks up the adapter for a broker identifier.
func (r *Registry) Resolve(brokerID string) (Broker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.brokers[brokerID]
	if !ok {
		return nil, ErrBrokerNotFound
	}
	return b, nil
}

// Names returns the registered broker identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.brokers))
	for n := range r.brokers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
