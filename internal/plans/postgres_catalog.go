package plans

import (
	"context"
	"database/sql"
	"fmt"
)

var _ Catalog = (*PostgresCatalog)(nil)

// PostgresCatalog reads plans from the subscription_plans table.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog creates a new PostgreSQL-backed plan catalog.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (p *PostgresCatalog) ListPlans(ctx context.Context) ([]*Plan, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, monthly_price, yearly_price, is_active, sort_order
		FROM subscription_plans
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var result []*Plan
	for rows.Next() {
		plan := &Plan{}
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.MonthlyPrice, &plan.YearlyPrice,
			&plan.IsActive, &plan.SortOrder); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		result = append(result, plan)
	}
	return result, rows.Err()
}

func (p *PostgresCatalog) GetPlan(ctx context.Context, id string) (*Plan, error) {
	plan := &Plan{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, monthly_price, yearly_price, is_active, sort_order
		FROM subscription_plans WHERE id = $1
	`, id).Scan(&plan.ID, &plan.Name, &plan.MonthlyPrice, &plan.YearlyPrice, &plan.IsActive, &plan.SortOrder)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}
