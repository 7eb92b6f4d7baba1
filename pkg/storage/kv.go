package storage

import (
	"errors"
	"sync"
)

// ErrRecordNotFound is returned when a key has no stored value.
var ErrRecordNotFound = errors.New("storage: record not found")

// ErrQuotaExceeded is returned by Memory when a write would exceed its
// configured byte budget.
var ErrQuotaExceeded = errors.New("storage: quota exceeded")

// KV is string key/value record storage.
type KV interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error
}

var (
	_ KV = (*Store)(nil)
	_ KV = (*Memory)(nil)
)

// Memory is an in-process KV used by tests and ephemeral sessions. Quota
// bounds the total bytes of stored values when positive.
type Memory struct {
	mu      sync.Mutex
	records map[string]string
	quota   int
	failErr error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]string)}
}

// SetQuota limits the total stored value bytes. Zero removes the limit.
func (m *Memory) SetQuota(bytes int) {
	m.mu.Lock()
	m.quota = bytes
	m.mu.Unlock()
}

// FailWith makes every subsequent operation return err until cleared
// with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}
	v, ok := m.records[key]
	if !ok {
		return "", ErrRecordNotFound
	}
	return v, nil
}

func (m *Memory) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if m.quota > 0 {
		used := len(value)
		for k, v := range m.records {
			if k != key {
				used += len(v)
			}
		}
		if used > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.records[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	delete(m.records, key)
	return nil
}
