package store

import (
	"context"
	"fmt"
	"sync"
)

// ObjectStore puts/gets opaque blobs under deterministic keys
// (spec.md §2, "Object store adapter"). The real object store (S3 or
// equivalent) is an external collaborator per spec.md §1; this adapter
// is the interface the core depends on.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// MemoryObjectStore is an in-memory ObjectStore, transparently
// encrypting at rest when an Encryptor is configured. Used in tests and
// as the default until a real bucket is wired in production.
type MemoryObjectStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	enc  *Encryptor
}

func NewMemoryObjectStore(enc *Encryptor) *MemoryObjectStore {
	if enc == nil {
		enc = NewEncryptor("")
	}
	return &MemoryObjectStore{data: make(map[string][]byte), enc: enc}
}

func (s *MemoryObjectStore) Put(ctx context.Context, key string, data []byte) error {
	enc, err := s.enc.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt object %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = enc
	return nil
}

func (s *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	blob, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return s.enc.Decrypt(blob)
}

func (s *MemoryObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}
