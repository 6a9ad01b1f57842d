package file

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// InMemory buffers the bytes in process memory. Useful for tests and
// for package bundles loaded without a filesystem.
type InMemory struct {
	common Common

	mu   sync.RWMutex
	data []byte
}

// NewInMemory creates an empty in-memory controller.
func NewInMemory(label, suffix string) *InMemory {
	return &InMemory{
		common: Common{UUID: uuid.New(), Label: label, Suffix: NormalizeSuffix(suffix)},
	}
}

// InMemoryFromOther creates an in-memory controller carrying the other
// controller's common attributes.
func InMemoryFromOther(other Controller) *InMemory {
	return &InMemory{common: other.Common()}
}

// Common implements Controller.
func (m *InMemory) Common() Common { return m.common }

// Put implements Controller.
func (m *InMemory) Put(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return NewError("memory", "put", m.common.Label, err)
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// Get implements Controller.
func (m *InMemory) Get(ctx context.Context) (io.ReadCloser, error) {
	m.mu.RLock()
	data := make([]byte, len(m.data))
	copy(data, m.data)
	m.mu.RUnlock()
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len returns the stored byte count.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
