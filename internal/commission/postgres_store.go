package commission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL. The schema lives in
// migrations/ and is applied by cmd/migrate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed settings store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const settingsColumns = `
	id, version, is_active,
	enable_multi_tier, auto_approve_applications, send_welcome_email, send_commission_notifications,
	min_payout_threshold, payment_schedule, payment_day,
	max_helpers_per_recruiter, referral_code_prefix, auto_generate_codes,
	created_by, created_at`

const ruleColumns = `
	commission_model, onetime_type, onetime_value,
	recurring_type, recurring_value, recurring_duration`

// GetActive loads the active version and its rules from one snapshot.
func (p *PostgresStore) GetActive(ctx context.Context) (*Settings, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	s, err := scanSettings(tx.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM commission_settings WHERE is_active`))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveSettings
	}
	if err != nil {
		return nil, fmt.Errorf("get active settings: %w", err)
	}
	if err := loadRules(ctx, tx, s); err != nil {
		return nil, err
	}
	return s, tx.Commit()
}

func (p *PostgresStore) GetVersion(ctx context.Context, version int) (*Settings, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	s, err := scanSettings(tx.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM commission_settings WHERE version = $1`, version))
	if err == sql.ErrNoRows {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings version: %w", err)
	}
	if err := loadRules(ctx, tx, s); err != nil {
		return nil, err
	}
	return s, tx.Commit()
}

// ListVersions returns full snapshots, newest first. Headers and rules are
// read in one snapshot so a concurrent activation cannot tear the result.
func (p *PostgresStore) ListVersions(ctx context.Context, limit int) ([]*Settings, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+settingsColumns+` FROM commission_settings ORDER BY version DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list settings versions: %w", err)
	}
	var result []*Settings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list settings versions: %w", err)
	}
	rows.Close()

	for _, s := range result {
		if err := loadRules(ctx, tx, s); err != nil {
			return nil, err
		}
	}
	return result, tx.Commit()
}

// Activate runs in one SERIALIZABLE transaction. The active row is locked
// first so two concurrent activations cannot both see the same predecessor.
func (p *PostgresStore) Activate(ctx context.Context, next *Settings, expectedPrev int, records []*AuditRecord) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current := 0
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM commission_settings WHERE is_active FOR UPDATE`).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return mapPQError(fmt.Errorf("lock active settings: %w", err))
	}
	if current != expectedPrev {
		return ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commission_settings SET is_active = FALSE WHERE is_active`); err != nil {
		return mapPQError(fmt.Errorf("deactivate settings: %w", err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO commission_settings (`+settingsColumns+`)
		VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		next.ID, next.Version,
		next.EnableMultiTier, next.AutoApproveApplications, next.SendWelcomeEmail, next.SendCommissionNotifications,
		next.MinPayoutThreshold, string(next.PaymentSchedule), next.PaymentDay,
		next.MaxHelpersPerRecruiter, next.ReferralCodePrefix, next.AutoGenerateCodes,
		next.CreatedBy, next.CreatedAt,
	)
	if err != nil {
		return mapPQError(fmt.Errorf("insert settings: %w", err))
	}

	for _, c := range Cadences {
		r := next.Network.For(c)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO network_commission_rules (settings_id, cadence, `+ruleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, next.ID, string(c),
			string(r.Model), string(r.OnetimeType), r.OnetimeValue,
			string(r.RecurringType), r.RecurringValue, r.RecurringDuration)
		if err != nil {
			return mapPQError(fmt.Errorf("insert network rule %s: %w", c, err))
		}
	}

	for _, id := range sortedPlanIDs(next.PlanOverrides) {
		o := next.PlanOverrides[id]
		for _, c := range Cadences {
			r := o.For(c)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO plan_commission_rules (settings_id, plan_id, cadence, is_enabled, `+ruleColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, next.ID, id, string(c), o.Enabled,
				string(r.Model), string(r.OnetimeType), r.OnetimeValue,
				string(r.RecurringType), r.RecurringValue, r.RecurringDuration)
			if err != nil {
				return mapPQError(fmt.Errorf("insert plan rule %s/%s: %w", id, c, err))
			}
		}
	}

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO commission_audit_log (
				id, created_at, changed_by, action, table_name,
				field_changed, old_value, new_value, reason, settings_version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, rec.ID, rec.CreatedAt, rec.ChangedBy, string(rec.Action), rec.TableName,
			rec.FieldChanged, rec.OldValue, rec.NewValue, rec.Reason, rec.SettingsVersion)
		if err != nil {
			return mapPQError(fmt.Errorf("insert audit record: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return mapPQError(fmt.Errorf("commit activation: %w", err))
	}
	return nil
}

func (p *PostgresStore) ListAudit(ctx context.Context, limit int) ([]*AuditRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, created_at, changed_by, action, table_name,
			field_changed, old_value, new_value, reason, settings_version
		FROM commission_audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var result []*AuditRecord
	for rows.Next() {
		r := &AuditRecord{}
		var action string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.ChangedBy, &action, &r.TableName,
			&r.FieldChanged, &r.OldValue, &r.NewValue, &r.Reason, &r.SettingsVersion); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Action = AuditAction(action)
		result = append(result, r)
	}
	return result, rows.Err()
}

// mapPQError turns serialization failures and unique violations into
// ErrVersionConflict: both mean another activation won the race.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "23505":
			return fmt.Errorf("%w: %s", ErrVersionConflict, pqErr.Message)
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettings(row scanner) (*Settings, error) {
	s := &Settings{}
	var schedule string
	err := row.Scan(
		&s.ID, &s.Version, &s.IsActive,
		&s.EnableMultiTier, &s.AutoApproveApplications, &s.SendWelcomeEmail, &s.SendCommissionNotifications,
		&s.MinPayoutThreshold, &schedule, &s.PaymentDay,
		&s.MaxHelpersPerRecruiter, &s.ReferralCodePrefix, &s.AutoGenerateCodes,
		&s.CreatedBy, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.PaymentSchedule = PaymentSchedule(schedule)
	return s, nil
}

func loadRules(ctx context.Context, tx *sql.Tx, s *Settings) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT cadence, `+ruleColumns+` FROM network_commission_rules WHERE settings_id = $1`, s.ID)
	if err != nil {
		return fmt.Errorf("load network rules: %w", err)
	}
	for rows.Next() {
		var cadence string
		r, err := readRule(rows, &cadence)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan network rule: %w", err)
		}
		if Cadence(cadence) == CadenceYearly {
			s.Network.Yearly = r
		} else {
			s.Network.Monthly = r
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("load network rules: %w", err)
	}
	rows.Close()

	rows, err = tx.QueryContext(ctx, `
		SELECT plan_id, is_enabled, cadence, `+ruleColumns+`
		FROM plan_commission_rules WHERE settings_id = $1
	`, s.ID)
	if err != nil {
		return fmt.Errorf("load plan rules: %w", err)
	}
	defer rows.Close()

	s.PlanOverrides = make(map[string]PlanOverride)
	for rows.Next() {
		var planID, cadence string
		var enabled bool
		r, err := readRule(rows, &planID, &enabled, &cadence)
		if err != nil {
			return fmt.Errorf("scan plan rule: %w", err)
		}
		o := s.PlanOverrides[planID]
		o.Enabled = enabled
		if Cadence(cadence) == CadenceYearly {
			o.Yearly = r
		} else {
			o.Monthly = r
		}
		s.PlanOverrides[planID] = o
	}
	return rows.Err()
}

// readRule scans the leading columns into prefix, then the rule columns.
func readRule(row scanner, prefix ...any) (Rule, error) {
	var r Rule
	var model, otype, rtype string
	dest := append(prefix, &model, &otype, &r.OnetimeValue, &rtype, &r.RecurringValue, &r.RecurringDuration)
	if err := row.Scan(dest...); err != nil {
		return Rule{}, err
	}
	r.Model = Model(model)
	r.OnetimeType = AmountType(otype)
	r.RecurringType = AmountType(rtype)
	return r, nil
}
