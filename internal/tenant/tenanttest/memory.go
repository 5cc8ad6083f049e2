// Package tenanttest provides an in-memory tenant repository for tests.
package tenanttest

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudbday/cloudbday/internal/tenant"
)

// Memory is a map-backed tenant.Repository.
type Memory struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant
	Err     error
}

// New returns an empty repository seeded with tenants.
func New(tenants ...*tenant.Tenant) *Memory {
	m := &Memory{tenants: make(map[string]*tenant.Tenant)}
	for _, t := range tenants {
		m.tenants[t.Namespace] = t
	}
	return m
}

func (m *Memory) Get(_ context.Context, namespace string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.tenants[namespace]
	if !ok {
		return nil, tenant.ErrNotConfigured
	}
	c := *t
	return &c, nil
}

func (m *Memory) Upsert(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	c := *t
	m.tenants[t.Namespace] = &c
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.tenants[namespace]; !ok {
		return tenant.ErrNotConfigured
	}
	delete(m.tenants, namespace)
	return nil
}

func (m *Memory) Namespaces(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]string, 0, len(m.tenants))
	for ns := range m.tenants {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}
