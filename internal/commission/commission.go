// Package commission implements the helper commission engine.
//
// Operators maintain a versioned Settings aggregate holding network-level and
// plan-level commission rules. Exactly one version is active at a time; every
// activation is validated, stored atomically, and audited field by field.
// At billing time the active settings resolve a Rule for a plan and cadence,
// and Evaluate turns that rule into the amount owed for a billing cycle.
package commission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rule bounds.
const (
	DefaultRecurringDuration = 12
	MinRecurringDuration     = 1
	MaxRecurringDuration     = 24
	MaxPercentage            = 100
	MaxReferralPrefixLen     = 6
	UnlimitedHelpers         = -1
)

// Model is the commission payout model of a rule.
type Model string

const (
	ModelOneTime   Model = "onetime"
	ModelRecurring Model = "recurring"
	ModelHybrid    Model = "hybrid"
)

// Valid reports whether m is a known model.
func (m Model) Valid() bool {
	switch m {
	case ModelOneTime, ModelRecurring, ModelHybrid:
		return true
	}
	return false
}

// DisplayName is the operator-facing label.
func (m Model) DisplayName() string {
	switch m {
	case ModelOneTime:
		return "One-time"
	case ModelRecurring:
		return "Recurring"
	case ModelHybrid:
		return "Hybrid"
	}
	return string(m)
}

// PaysOnetime reports whether the one-time fields of a rule are meaningful.
func (m Model) PaysOnetime() bool { return m == ModelOneTime || m == ModelHybrid }

// PaysRecurring reports whether the recurring fields of a rule are meaningful.
func (m Model) PaysRecurring() bool { return m == ModelRecurring || m == ModelHybrid }

func (m *Model) UnmarshalText(b []byte) error {
	v := Model(strings.ToLower(strings.TrimSpace(string(b))))
	if v != "" && !v.Valid() {
		return fmt.Errorf("commission: unknown model %q", string(b))
	}
	*m = v
	return nil
}

// AmountType selects how a rule value is applied to a payment.
type AmountType string

const (
	AmountPercentage AmountType = "percentage"
	AmountFixed      AmountType = "fixed"
)

// Valid reports whether t is a known amount type.
func (t AmountType) Valid() bool {
	return t == AmountPercentage || t == AmountFixed
}

func (t *AmountType) UnmarshalText(b []byte) error {
	v := AmountType(strings.ToLower(strings.TrimSpace(string(b))))
	if v != "" && !v.Valid() {
		return fmt.Errorf("commission: unknown amount type %q", string(b))
	}
	*t = v
	return nil
}

// Cadence is a subscription billing frequency.
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

// Cadences lists every cadence in display order.
var Cadences = []Cadence{CadenceMonthly, CadenceYearly}

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	return c == CadenceMonthly || c == CadenceYearly
}

func (c *Cadence) UnmarshalText(b []byte) error {
	v := Cadence(strings.ToLower(strings.TrimSpace(string(b))))
	if v != "" && !v.Valid() {
		return fmt.Errorf("commission: unknown cadence %q", string(b))
	}
	*c = v
	return nil
}

// PaymentSchedule is how often accrued commission is paid out to helpers.
type PaymentSchedule string

const (
	ScheduleWeekly   PaymentSchedule = "weekly"
	ScheduleBiweekly PaymentSchedule = "biweekly"
	ScheduleMonthly  PaymentSchedule = "monthly"
)

// AuditAction is the kind of change an AuditRecord describes.
type AuditAction string

const (
	AuditCreated AuditAction = "created"
	AuditUpdated AuditAction = "updated"
	AuditDeleted AuditAction = "deleted"
)

// Rule is the commission rule for one cadence.
//
// RecurringDuration counts billing cycles of the rule's own cadence: months for
// monthly rules, years for yearly rules. It always holds a value in 1..24, even
// for one-time rules, because storage requires it.
type Rule struct {
	Model             Model           `json:"model"`
	OnetimeType       AmountType      `json:"onetimeType"`
	OnetimeValue      decimal.Decimal `json:"onetimeValue"`
	RecurringType     AmountType      `json:"recurringType"`
	RecurringValue    decimal.Decimal `json:"recurringValue"`
	RecurringDuration int             `json:"recurringDuration"`
}

// Normalize zeroes the fields the model ignores and repairs an unused duration.
func (r Rule) Normalize() Rule {
	switch r.Model {
	case ModelOneTime:
		r.RecurringValue = decimal.Zero
	case ModelRecurring:
		r.OnetimeValue = decimal.Zero
	}
	if r.OnetimeType == "" {
		r.OnetimeType = AmountPercentage
	}
	if r.RecurringType == "" {
		r.RecurringType = AmountPercentage
	}
	if !r.Model.PaysRecurring() &&
		(r.RecurringDuration < MinRecurringDuration || r.RecurringDuration > MaxRecurringDuration) {
		r.RecurringDuration = DefaultRecurringDuration
	}
	return r
}

// IsZero reports whether the rule was never populated.
func (r Rule) IsZero() bool {
	return r.Model == ""
}

// paysNothing reports whether every value the model uses is zero.
func (r Rule) paysNothing() bool {
	if r.Model.PaysOnetime() && r.OnetimeValue.IsPositive() {
		return false
	}
	if r.Model.PaysRecurring() && r.RecurringValue.IsPositive() {
		return false
	}
	return true
}

// NetworkRules is the default commission a helper earns for recruiting another helper.
type NetworkRules struct {
	Monthly Rule `json:"monthly"`
	Yearly  Rule `json:"yearly"`
}

// For returns the rule for a cadence.
func (n NetworkRules) For(c Cadence) Rule {
	if c == CadenceYearly {
		return n.Yearly
	}
	return n.Monthly
}

// PlanOverride replaces the network rules for one subscription plan.
// A disabled override means the plan earns no commission at all.
type PlanOverride struct {
	Enabled bool `json:"enabled"`
	Monthly Rule `json:"monthly"`
	Yearly  Rule `json:"yearly"`
}

// For returns the rule for a cadence.
func (p PlanOverride) For(c Cadence) Rule {
	if c == CadenceYearly {
		return p.Yearly
	}
	return p.Monthly
}

// Settings is one immutable version of the commission configuration.
type Settings struct {
	ID       string `json:"id"`
	Version  int    `json:"version"`
	IsActive bool   `json:"isActive"`

	EnableMultiTier             bool `json:"enableMultiTier"`
	AutoApproveApplications     bool `json:"autoApproveApplications"`
	SendWelcomeEmail            bool `json:"sendWelcomeEmail"`
	SendCommissionNotifications bool `json:"sendCommissionNotifications"`

	MinPayoutThreshold decimal.Decimal `json:"minPayoutThreshold"`
	PaymentSchedule    PaymentSchedule `json:"paymentSchedule"`
	PaymentDay         string          `json:"paymentDay"`

	MaxHelpersPerRecruiter int    `json:"maxHelpersPerRecruiter"`
	ReferralCodePrefix     string `json:"referralCodePrefix"`
	AutoGenerateCodes      bool   `json:"autoGenerateCodes"`

	Network       NetworkRules            `json:"network"`
	PlanOverrides map[string]PlanOverride `json:"planOverrides"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	cp := *s
	if s.PlanOverrides != nil {
		cp.PlanOverrides = make(map[string]PlanOverride, len(s.PlanOverrides))
		for id, o := range s.PlanOverrides {
			cp.PlanOverrides[id] = o
		}
	}
	return &cp
}

// Normalize returns a copy with every rule normalized and the prefix trimmed.
func (s *Settings) Normalize() *Settings {
	cp := s.Clone()
	cp.ReferralCodePrefix = strings.TrimSpace(cp.ReferralCodePrefix)
	cp.PaymentDay = strings.ToLower(strings.TrimSpace(cp.PaymentDay))
	cp.Network.Monthly = cp.Network.Monthly.Normalize()
	cp.Network.Yearly = cp.Network.Yearly.Normalize()
	for id, o := range cp.PlanOverrides {
		// Disabled overrides still need storable rules.
		if !o.Enabled {
			if o.Monthly.IsZero() {
				o.Monthly.Model = ModelOneTime
			}
			if o.Yearly.IsZero() {
				o.Yearly.Model = ModelOneTime
			}
		}
		o.Monthly = o.Monthly.Normalize()
		o.Yearly = o.Yearly.Normalize()
		cp.PlanOverrides[id] = o
	}
	return cp
}

// AuditRecord is one append-only entry of the settings audit trail.
type AuditRecord struct {
	ID              string      `json:"id"`
	CreatedAt       time.Time   `json:"createdAt"`
	ChangedBy       string      `json:"changedBy"`
	Action          AuditAction `json:"action"`
	TableName       string      `json:"tableName"`
	FieldChanged    string      `json:"fieldChanged,omitempty"`
	OldValue        string      `json:"oldValue,omitempty"`
	NewValue        string      `json:"newValue,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	SettingsVersion int         `json:"settingsVersion"`
}

// Audit table names.
const (
	TableSettings     = "commission_settings"
	TableNetworkRules = "network_commission_rules"
	TablePlanRules    = "plan_commission_rules"
)

// Store persists settings versions and their audit trail.
type Store interface {
	// GetActive returns ErrNoActiveSettings before the first activation.
	GetActive(ctx context.Context) (*Settings, error)
	GetVersion(ctx context.Context, version int) (*Settings, error)
	// ListVersions returns full snapshots, newest first.
	ListVersions(ctx context.Context, limit int) ([]*Settings, error)
	// Activate deactivates the version currently active, inserts next with its
	// rules, and appends records, as one unit. It returns ErrVersionConflict
	// when the active version is no longer expectedPrev (0 = none).
	Activate(ctx context.Context, next *Settings, expectedPrev int, records []*AuditRecord) error
	ListAudit(ctx context.Context, limit int) ([]*AuditRecord, error)
}

// PlanLookup is the slice of the plan catalog the engine needs.
type PlanLookup interface {
	PlanNames(ctx context.Context) (map[string]string, error)
	PlanPrice(ctx context.Context, planID string, cadence Cadence) (decimal.Decimal, error)
}

// Notifier is told about every successful activation.
type Notifier interface {
	SettingsActivated(s *Settings, summary *ChangeSummary)
}
