// Package cachetest provides an in-memory cache for tests.
package cachetest

import (
	"context"
	"sync"
	"time"
)

// Memory is a map-backed cache that records TTLs and counts calls.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
	TTLs    map[string]time.Duration
	Gets    int
	Sets    int
	Deletes int
	Err     error
}

// New returns an empty Memory cache.
func New() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		TTLs:    make(map[string]time.Duration),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.Err != nil {
		return nil, false, m.Err
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if m.Err != nil {
		return m.Err
	}
	m.entries[key] = value
	m.TTLs[key] = ttl
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	if m.Err != nil {
		return m.Err
	}
	delete(m.entries, key)
	delete(m.TTLs, key)
	return nil
}

// Has reports whether key is present.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}
