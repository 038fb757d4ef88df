package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process KeyValueStore used in tests and for local
// development (STORE_BACKEND=memory). Values are copied on the way in and
// out so callers cannot alias the stored slice.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte

	subMu  sync.Mutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	prefix string
	fn     func(key string)
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
		subs: make(map[int]subscription),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[key] = cloneBytes(value)
	m.mu.Unlock()
	m.notify(key)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	m.notify(key)
	return nil
}

func (m *Memory) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	if _, exists := m.data[key]; exists {
		m.mu.Unlock()
		return false, nil
	}
	m.data[key] = cloneBytes(value)
	m.mu.Unlock()
	m.notify(key)
	return true, nil
}

// Subscribe implements Notifier. Callbacks run synchronously after the write;
// keep them short.
func (m *Memory) Subscribe(prefix string, fn func(key string)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = subscription{prefix: prefix, fn: fn}
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Memory) notify(key string) {
	m.subMu.Lock()
	var fns []func(string)
	for _, s := range m.subs {
		if strings.HasPrefix(key, s.prefix) {
			fns = append(fns, s.fn)
		}
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
