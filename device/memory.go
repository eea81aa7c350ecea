package device

import (
	"context"
	"sync"
)

// Memory is a BlockDevice backed by a byte slice.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory returns a zero-filled in-memory device of the given size.
func NewMemory(size int64) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) ReadBlock(ctx context.Context, index uint32, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := checkIO(int64(len(m.data)), index, p); err != nil {
		return err
	}
	copy(p, m.data[offset(index):])
	return nil
}

func (m *Memory) WriteBlock(ctx context.Context, index uint32, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkIO(int64(len(m.data)), index, p); err != nil {
		return err
	}
	copy(m.data[offset(index):], p)
	return nil
}

func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}
