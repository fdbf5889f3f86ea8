package broker

import (
	"context"
	"errors"
	"testing"
)

// entryOnlyBroker implements Broker but not OCOPlacer.
type entryOnlyBroker struct{ name string }

func (b *entryOnlyBroker) Name() string { return b.name }
func (b *entryOnlyBroker) PlaceEntry(ctx context.Context, authToken string, ord EntryOrder) (EntryResult, error) {
	return EntryResult{Success: true, OrderID: "E1"}, nil
}

// fullBroker implements both Broker and OCOPlacer.
type fullBroker struct{ entryOnlyBroker }

func (b *fullBroker) PlaceOCO(ctx context.Context, authToken string, ord OCOOrder) (OCOResult, error) {
	return OCOResult{Success: true, SLOrderID: "S1", TargetOrderID: "T1"}, nil
}

func TestRegistry_ResolveKnown(t *testing.T) {
	r := NewRegistry()
	b := &fullBroker{entryOnlyBroker{name: "angelone"}}
	r.Register(b)

	got, err := r.Resolve("angelone")
	if err != nil {
		t.Fatalf("Resolve: unexpected error %v", err)
	}
	if got != b {
		t.Errorf("Resolve returned wrong adapter")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("nosuchbroker")
	if !errors.Is(err, ErrBrokerNotFound) {
		t.Errorf("expected ErrBrokerNotFound, got %v", err)
	}
}

func TestSupportsOCO(t *testing.T) {
	if SupportsOCO(&entryOnlyBroker{name: "basic"}) {
		t.Error("entry-only adapter must not report OCO support")
	}
	if !SupportsOCO(&fullBroker{entryOnlyBroker{name: "full"}}) {
		t.Error("full adapter must report OCO support")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&entryOnlyBroker{name: "zeta"})
	r.Register(&entryOnlyBroker{name: "angelone"})

	names := r.Names()
	if len(names) != 2 || names[0] != "angelone" || names[1] != "zeta" {
		t.Errorf("Names: got %v, want sorted [angelone zeta]", names)
	}
}
