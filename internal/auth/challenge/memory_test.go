package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStorePutAndTake(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), NamespaceRegistration, "req-1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	payload, err := store.Take(context.Background(), NamespaceRegistration, "req-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if string(payload) != "payload" {
		t.Fatalf("payload = %q, want payload", payload)
	}
}

func TestMemoryStoreTakeRemovesEntry(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), NamespaceAssertion, "req-1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Take(context.Background(), NamespaceAssertion, "req-1"); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if _, err := store.Take(context.Background(), NamespaceAssertion, "req-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second take: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreNamespacesAreDisjoint(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), NamespaceRegistration, "req-1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Take(context.Background(), NamespaceAssertion, "req-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-namespace take: got %v, want ErrNotFound", err)
	}
	if _, err := store.Take(context.Background(), NamespaceRegistration, "req-1"); err != nil {
		t.Fatalf("same-namespace take: %v", err)
	}
}

func TestMemoryStoreExpiredEntryIsGone(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	if err := store.Put(context.Background(), NamespaceRegistration, "req-1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Take(context.Background(), NamespaceRegistration, "req-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired take: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStorePutReplacesEntry(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), NamespaceRegistration, "req-1", []byte("old"), time.Minute); err != nil {
		t.Fatalf("put old: %v", err)
	}
	if err := store.Put(context.Background(), NamespaceRegistration, "req-1", []byte("new"), time.Minute); err != nil {
		t.Fatalf("put new: %v", err)
	}

	payload, err := store.Take(context.Background(), NamespaceRegistration, "req-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if string(payload) != "new" {
		t.Fatalf("payload = %q, want new", payload)
	}
}

func TestMemoryStoreConcurrentTakeSingleWinner(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), NamespaceAssertion, "req-1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	const takers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, takers)
	for i := 0; i < takers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(context.Background(), NamespaceAssertion, "req-1"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("winners = %d, want 1", won)
	}
}

func TestMemoryStoreValidatesArguments(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), "", "req-1", nil, time.Minute); err == nil {
		t.Fatal("expected error for empty namespace")
	}
	if err := store.Put(context.Background(), NamespaceRegistration, "", nil, time.Minute); err == nil {
		t.Fatal("expected error for empty request id")
	}
	if err := store.Put(context.Background(), NamespaceRegistration, "req-1", nil, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
