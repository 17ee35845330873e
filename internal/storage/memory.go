package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend 进程内后端，语义与 SQLiteBackend 一致
type MemoryBackend struct {
	mu     sync.RWMutex
	rows   map[string]Record
	rev    int64
	closed bool
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[string]Record)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	r, ok := m.rows[key]
	if !ok || r.Deleted {
		return nil, ErrNotFound
	}
	return append([]byte(nil), r.Value...), nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, value []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.rev++
	m.rows[key] = Record{Key: key, Value: append([]byte(nil), value...), Revision: m.rev, UpdatedAt: time.Now()}
	return m.rev, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.rev++
	m.rows[key] = Record{Key: key, Revision: m.rev, Deleted: true, UpdatedAt: time.Now()}
	return m.rev, nil
}

func (m *MemoryBackend) Truncate(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var removed []Record
	for k, r := range m.rows {
		if r.Deleted {
			continue
		}
		m.rev++
		tomb := Record{Key: k, Revision: m.rev, Deleted: true, UpdatedAt: time.Now()}
		m.rows[k] = tomb
		removed = append(removed, tomb)
	}
	return removed, nil
}

func (m *MemoryBackend) Changes(_ context.Context, since int64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []Record
	for _, r := range m.rows {
		if r.Revision > since {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	return out, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
