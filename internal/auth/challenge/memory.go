package challenge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store backed by a mutex-guarded map. Expired
// entries are dropped lazily when a Take or Put touches their key.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// NewMemoryStore creates an empty in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, namespace string, requestID string, payload []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := entryKey(namespace, requestID)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: s.clock().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, namespace string, requestID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := entryKey(namespace, requestID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, key)
	if !s.clock().Before(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.payload, nil
}

func entryKey(namespace string, requestID string) (string, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return "", fmt.Errorf("namespace is required")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return "", fmt.Errorf("request id is required")
	}
	return namespace + ":" + requestID, nil
}

var _ Store = (*MemoryStore)(nil)
