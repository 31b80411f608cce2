// Package plans is the read-only subscription plan catalog.
package plans

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrPlanNotFound = errors.New("plans: plan not found")

// Plan is a subscription plan stores can buy.
type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthlyPrice"`
	YearlyPrice  decimal.Decimal `json:"yearlyPrice"`
	IsActive     bool            `json:"isActive"`
	SortOrder    int             `json:"sortOrder"`
}

// Catalog lists subscription plans.
type Catalog interface {
	// ListPlans returns every plan, including retired ones, in display order.
	ListPlans(ctx context.Context) ([]*Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
}

// DefaultPlans is the catalog seeded in development mode. It matches the
// rows inserted by the initial migration.
func DefaultPlans() []*Plan {
	return []*Plan{
		{ID: "starter", Name: "Starter", MonthlyPrice: decimal.NewFromInt(499), YearlyPrice: decimal.NewFromInt(4990), IsActive: true, SortOrder: 1},
		{ID: "growth", Name: "Growth", MonthlyPrice: decimal.NewFromInt(999), YearlyPrice: decimal.NewFromInt(9990), IsActive: true, SortOrder: 2},
		{ID: "pro", Name: "Pro", MonthlyPrice: decimal.NewFromInt(1999), YearlyPrice: decimal.NewFromInt(19990), IsActive: true, SortOrder: 3},
	}
}
