// Package persontest provides an in-memory person repository for tests.
package persontest

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudbday/cloudbday/internal/person"
)

// Memory is a map-backed person.Repository that counts writes.
type Memory struct {
	mu     sync.Mutex
	people map[string]*person.Person // namespace + "/" + email
	Writes int
	Err    error
}

// New returns an empty repository.
func New() *Memory {
	return &Memory{people: make(map[string]*person.Person)}
}

func key(namespace, email string) string {
	return namespace + "/" + email
}

func clone(p *person.Person) *person.Person {
	c := *p
	return &c
}

// Put stores p without counting a write.
func (m *Memory) Put(p *person.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people[key(p.Namespace, p.Email)] = clone(p)
}

// Len returns the number of stored people in namespace.
func (m *Memory) Len(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.people {
		if p.Namespace == namespace {
			n++
		}
	}
	return n
}

func (m *Memory) Get(_ context.Context, namespace, id string) (*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.people {
		if p.Namespace == namespace && p.ID == id {
			return clone(p), nil
		}
	}
	return nil, person.ErrNotFound
}

func (m *Memory) GetByEmail(_ context.Context, namespace, email string) (*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.people[key(namespace, email)]
	if !ok {
		return nil, person.ErrNotFound
	}
	return clone(p), nil
}

func (m *Memory) Create(_ context.Context, p *person.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Writes++
	m.people[key(p.Namespace, p.Email)] = clone(p)
	return nil
}

func (m *Memory) Update(_ context.Context, p *person.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.people[key(p.Namespace, p.Email)]; !ok {
		return person.ErrNotFound
	}
	m.Writes++
	m.people[key(p.Namespace, p.Email)] = clone(p)
	return nil
}

func (m *Memory) UpsertMany(_ context.Context, namespace string, people []*person.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Writes++
	for _, p := range people {
		k := key(namespace, p.Email)
		if cur, ok := m.people[k]; ok {
			next := clone(cur)
			if p.FirstName != "" {
				next.FirstName = p.FirstName
			}
			if p.LastName != "" {
				next.LastName = p.LastName
			}
			next.BirthDay, next.BirthMonth, next.BirthYear = p.BirthDay, p.BirthMonth, p.BirthYear
			next.UpdatedAt = p.UpdatedAt
			m.people[k] = next
			continue
		}
		m.people[k] = clone(p)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	k := key(namespace, email)
	if _, ok := m.people[k]; !ok {
		return person.ErrNotFound
	}
	m.Writes++
	delete(m.people, k)
	return nil
}

func (m *Memory) list(namespace string, keep func(*person.Person) bool) ([]*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*person.Person
	for _, p := range m.people {
		if p.Namespace == namespace && keep(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *Memory) List(_ context.Context, namespace string) ([]*person.Person, error) {
	return m.list(namespace, func(*person.Person) bool { return true })
}

func (m *Memory) ListByBirthday(_ context.Context, namespace string, month, day int) ([]*person.Person, error) {
	return m.list(namespace, func(p *person.Person) bool {
		return p.ReceiveMail && p.HasBirthday() && *p.BirthMonth == month && *p.BirthDay == day
	})
}

func (m *Memory) ListWithBirthday(_ context.Context, namespace string) ([]*person.Person, error) {
	return m.list(namespace, func(p *person.Person) bool { return p.HasBirthday() })
}
