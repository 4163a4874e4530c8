package store

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
)

// MemoryBackend keeps the serialized document in process memory.
// It is meant for tests: failures can be injected through ReadErr and
// WriteErr, and Writes counts successful saves.
type MemoryBackend struct {
	mu       sync.Mutex
	data     []byte
	exists   bool
	ReadErr  error
	WriteErr error
	Writes   int
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty backend with no document.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// NewMemoryBackendWith returns a backend already holding data.
func NewMemoryBackendWith(data []byte) *MemoryBackend {
	return &MemoryBackend{data: append([]byte(nil), data...), exists: true}
}

func (m *MemoryBackend) Location() string {
	return "memory"
}

func (m *MemoryBackend) Init(_ context.Context, seed []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists {
		return false, nil
	}
	m.data = append([]byte(nil), seed...)
	m.exists = true
	return true, nil
}

func (m *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if !m.exists {
		return nil, fmt.Errorf("memory document: %w", fs.ErrNotExist)
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryBackend) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data = append([]byte(nil), data...)
	m.exists = true
	m.Writes++
	return nil
}

// Bytes returns a copy of the stored document.
func (m *MemoryBackend) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// SetWriteErr changes the injected write failure under the backend lock.
func (m *MemoryBackend) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErr = err
}
