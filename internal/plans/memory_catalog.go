package plans

import (
	"context"
	"sort"
	"sync"
)

// MemoryCatalog is an in-memory plan catalog for demo/development mode.
type MemoryCatalog struct {
	mu    sync.RWMutex
	plans map[string]*Plan
}

// NewMemoryCatalog creates a catalog holding plans.
func NewMemoryCatalog(plans ...*Plan) *MemoryCatalog {
	m := &MemoryCatalog{plans: make(map[string]*Plan, len(plans))}
	for _, p := range plans {
		cp := *p
		m.plans[p.ID] = &cp
	}
	return m
}

func (m *MemoryCatalog) ListPlans(ctx context.Context) ([]*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Plan, 0, len(m.plans))
	for _, p := range m.plans {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryCatalog) GetPlan(ctx context.Context, id string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}
