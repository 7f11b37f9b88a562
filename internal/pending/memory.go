package pending

import (
	"context"
	"sync"
)

// MemoryStore keeps the slot in process memory. It stores the encoded form so
// reads go through the same decoding as the durable backends.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	if raw == nil {
		return nil, nil
	}
	return Decode(raw)
}

func (s *MemoryStore) Write(ctx context.Context, record Record) error {
	raw, err := Encode(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.raw = nil
	s.mu.Unlock()
	return nil
}

// SetRaw replaces the slot contents verbatim, bypassing encoding.
func (s *MemoryStore) SetRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw == nil {
		s.raw = nil
		return
	}
	s.raw = append([]byte(nil), raw...)
}

// Raw returns a copy of the slot contents.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil
	}
	return append([]byte(nil), s.raw...)
}
