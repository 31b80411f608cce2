package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storefront-admin/commissions/internal/commission"
)

var _ commission.PlanLookup = (*Lookup)(nil)

// Lookup adapts a Catalog to the commission engine.
type Lookup struct {
	catalog Catalog
}

// NewLookup wraps catalog.
func NewLookup(catalog Catalog) *Lookup {
	return &Lookup{catalog: catalog}
}

// PlanNames maps every plan ID, retired plans included, to its display name.
// Retired plans stay known so historical overrides remain valid.
func (l *Lookup) PlanNames(ctx context.Context) (map[string]string, error) {
	all, err := l.catalog.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, p := range all {
		names[p.ID] = p.Name
	}
	return names, nil
}

// PlanPrice returns the plan's list price for cadence.
func (l *Lookup) PlanPrice(ctx context.Context, planID string, cadence commission.Cadence) (decimal.Decimal, error) {
	p, err := l.catalog.GetPlan(ctx, planID)
	if errors.Is(err, ErrPlanNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s", commission.ErrUnknownPlan, planID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if cadence == commission.CadenceYearly {
		return p.YearlyPrice, nil
	}
	return p.MonthlyPrice, nil
}
