package commission

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory settings store for demo/development mode.
// Activation happens under one lock, so readers see either the previous or
// the next version, never both or neither.
type MemoryStore struct {
	mu       sync.RWMutex
	versions []*Settings // index = version-1
	active   int         // active version, 0 before the first activation
	audit    []*AuditRecord
}

// NewMemoryStore creates a new in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) GetActive(ctx context.Context) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == 0 {
		return nil, ErrNoActiveSettings
	}
	return m.versions[m.active-1].Clone(), nil
}

func (m *MemoryStore) GetVersion(ctx context.Context, version int) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if version < 1 || version > len(m.versions) {
		return nil, ErrVersionNotFound
	}
	return m.versions[version-1].Clone(), nil
}

func (m *MemoryStore) ListVersions(ctx context.Context, limit int) ([]*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Settings
	for i := len(m.versions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.versions[i].Clone())
	}
	return result, nil
}

func (m *MemoryStore) Activate(ctx context.Context, next *Settings, expectedPrev int, records []*AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != expectedPrev || next.Version != len(m.versions)+1 {
		return ErrVersionConflict
	}

	if m.active > 0 {
		m.versions[m.active-1].IsActive = false
	}
	stored := next.Clone()
	stored.IsActive = true
	m.versions = append(m.versions, stored)
	m.active = stored.Version

	for _, r := range records {
		cp := *r
		m.audit = append(m.audit, &cp)
	}
	return nil
}

func (m *MemoryStore) ListAudit(ctx context.Context, limit int) ([]*AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*AuditRecord
	for i := len(m.audit) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *m.audit[i]
		result = append(result, &cp)
	}
	return result, nil
}

// activeCount counts versions flagged active. Tests use it to check the
// single-active invariant.
func (m *MemoryStore) activeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.versions {
		if s.IsActive {
			n++
		}
	}
	return n
}
