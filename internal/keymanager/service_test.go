package keymanager_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"ciphera/internal/domain"
	"ciphera/internal/keymanager"
	"ciphera/internal/primitives"
)

// memStore is a minimal in-memory interfaces.SecureStore for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Set(_ context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte{}, value...)
	m.data[name] = cp
	return nil
}

func (m *memStore) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (m *memStore) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	return nil
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	km := keymanager.New(store, keymanager.DefaultConfig())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := km.Initialize(ctx, now)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !first.NewDevice {
		t.Fatal("expected NewDevice on first call")
	}
	if !primitives.Verify(first.Bundle.IdentitySigningPublic, first.Bundle.SignedPreKeyPublic.Slice(), first.Bundle.SignedPreKeySignature) {
		t.Fatal("bundle signed pre-key signature does not verify")
	}

	second, err := km.Initialize(ctx, now)
	if err != nil {
		t.Fatalf("Initialize (second call): %v", err)
	}
	if second.NewDevice {
		t.Fatal("expected NewDevice=false on second call")
	}
}

func TestRotateSignedPreKeyRespectsInterval(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	km := keymanager.New(store, keymanager.DefaultConfig())

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := km.Initialize(ctx, t0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	soon := t0.Add(24 * time.Hour)
	result, err := km.RotateSignedPreKeyIfNeeded(ctx, soon)
	if err != nil {
		t.Fatalf("RotateSignedPreKeyIfNeeded: %v", err)
	}
	if result.Rotated {
		t.Fatal("rotated before the configured interval elapsed")
	}

	later := t0.Add(31 * 24 * time.Hour)
	result, err = km.RotateSignedPreKeyIfNeeded(ctx, later)
	if err != nil {
		t.Fatalf("RotateSignedPreKeyIfNeeded: %v", err)
	}
	if !result.Rotated || result.NewBundle == nil {
		t.Fatal("expected rotation after 31 days")
	}

	old, err := km.SignedPreKey(ctx, 1)
	if err != nil {
		t.Fatalf("old SignedPreKey still retrievable: %v", err)
	}
	if old.ID != 1 {
		t.Fatalf("got id %d, want 1", old.ID)
	}
}

func TestConsumeOneTimePreKeyIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	km := keymanager.New(store, keymanager.DefaultConfig())
	if _, err := km.Initialize(ctx, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	opks, err := km.GenerateOneTimePreKeys(ctx, 3)
	if err != nil {
		t.Fatalf("GenerateOneTimePreKeys: %v", err)
	}
	if len(opks) != 3 {
		t.Fatalf("got %d opks, want 3", len(opks))
	}

	id := opks[0].ID
	if _, err := km.ConsumeOneTimePreKey(ctx, id); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := km.ConsumeOneTimePreKey(ctx, id); err != domain.ErrNotFound {
		t.Fatalf("second consume: got %v, want ErrNotFound", err)
	}
}

func TestNeedsOPKRefill(t *testing.T) {
	km := keymanager.New(newMemStore(), keymanager.DefaultConfig())
	if km.NeedsOPKRefill(20) {
		t.Fatal("20 should not trigger refill (threshold is 20)")
	}
	if !km.NeedsOPKRefill(19) {
		t.Fatal("19 should trigger refill")
	}
}

func TestWipeAllErasesIdentity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	km := keymanager.New(store, keymanager.DefaultConfig())
	if _, err := km.Initialize(ctx, time.Now()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := km.WipeAll(ctx); err != nil {
		t.Fatalf("WipeAll: %v", err)
	}
	if _, err := km.Identity(ctx); err != domain.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound after wipe", err)
	}
}
