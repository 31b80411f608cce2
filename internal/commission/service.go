package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"

	"github.com/storefront-admin/commissions/internal/idgen"
	"github.com/storefront-admin/commissions/internal/metrics"
	"github.com/storefront-admin/commissions/internal/traces"
)

// Service owns the settings lifecycle and billing-time computation.
type Service struct {
	store    Store
	plans    PlanLookup
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier registers a listener for successful activations.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a commission service. plans may be nil, in which case
// overrides are not checked against the catalog and Compute needs explicit amounts.
func NewService(store Store, plans PlanLookup, opts ...Option) *Service {
	s := &Service{
		store:  store,
		plans:  plans,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActivateRequest is an operator's request to make a candidate the active version.
type ActivateRequest struct {
	Candidate *Settings
	ChangedBy string
	Reason    string
}

// Activation is the outcome of a successful activation.
type Activation struct {
	Settings *Settings     `json:"settings"`
	Summary  *ChangeSummary `json:"summary"`
}

// Activate validates req.Candidate and stores it as the next active version.
//
// Returns *ValidationError when the candidate is rejected (nothing is written),
// *ConflictError when another activation committed first, and
// *PersistenceError for any other storage failure.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (*Activation, error) {
	ctx, span := traces.StartSpan(ctx, "commission.Activate", traces.ChangedBy(req.ChangedBy))
	defer span.End()

	prev, err := s.store.GetActive(ctx)
	if err != nil && !errors.Is(err, ErrNoActiveSettings) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read active settings")
		metrics.SettingsActivationsTotal.WithLabelValues("error").Inc()
		return nil, &PersistenceError{Op: "read active settings", Err: err}
	}
	prevVersion := 0
	if prev != nil {
		prevVersion = prev.Version
	}

	if req.Candidate == nil {
		metrics.SettingsActivationsTotal.WithLabelValues("invalid").Inc()
		return nil, &ValidationError{Errors: Validate(nil).Errors}
	}
	next := req.Candidate.Normalize()

	names, res, err := s.validate(ctx, next)
	if err != nil {
		span.RecordError(err)
		metrics.SettingsActivationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !res.IsValid {
		span.SetStatus(codes.Error, "validation failed")
		metrics.SettingsActivationsTotal.WithLabelValues("invalid").Inc()
		return nil, &ValidationError{Errors: res.Errors}
	}

	now := s.now().UTC()
	next.ID = idgen.WithPrefix(idgen.PrefixSettings)
	next.Version = prevVersion + 1
	next.IsActive = true
	next.CreatedAt = now
	next.CreatedBy = req.ChangedBy
	span.SetAttributes(traces.SettingsVersion(next.Version))

	summary := DiffWithPlanNames(prev, next, names)
	records := auditRecords(next, summary, req, now)

	if err := s.store.Activate(ctx, next, prevVersion, records); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrVersionConflict) {
			span.SetStatus(codes.Error, "version conflict")
			metrics.SettingsActivationsTotal.WithLabelValues("conflict").Inc()
			return nil, &ConflictError{ExpectedVersion: prevVersion, Err: err}
		}
		span.SetStatus(codes.Error, "store activation")
		metrics.SettingsActivationsTotal.WithLabelValues("error").Inc()
		return nil, &PersistenceError{Op: "activate settings", Err: err}
	}

	metrics.SettingsActivationsTotal.WithLabelValues("activated").Inc()
	metrics.ActiveSettingsVersion.Set(float64(next.Version))
	s.logger.Info("commission settings activated",
		"version", next.Version,
		"previous_version", prevVersion,
		"changed_by", req.ChangedBy,
		"changes", summary.Len())

	if s.notifier != nil {
		s.notifier.SettingsActivated(next.Clone(), summary)
	}
	return &Activation{Settings: next, Summary: summary}, nil
}

// ValidateCandidate runs the same checks Activate would, without writing anything.
func (s *Service) ValidateCandidate(ctx context.Context, candidate *Settings) (Result, error) {
	if candidate == nil {
		return Validate(nil), nil
	}
	_, res, err := s.validate(ctx, candidate.Normalize())
	return res, err
}

// validate returns the catalog's plan names alongside the result so callers
// can label the summary without a second lookup.
func (s *Service) validate(ctx context.Context, candidate *Settings) (map[string]string, Result, error) {
	if s.plans == nil {
		return nil, Validate(candidate), nil
	}
	names, err := s.plans.PlanNames(ctx)
	if err != nil {
		return nil, Result{}, &PersistenceError{Op: "load plan catalog", Err: err}
	}
	known := make(map[string]bool, len(names))
	for id := range names {
		known[id] = true
	}
	return names, ValidateWithPlans(candidate, known), nil
}

func auditRecords(next *Settings, summary *ChangeSummary, req ActivateRequest, at time.Time) []*AuditRecord {
	if next.Version == 1 {
		return []*AuditRecord{{
			ID:              idgen.WithPrefix(idgen.PrefixAudit),
			CreatedAt:       at,
			ChangedBy:       req.ChangedBy,
			Action:          AuditCreated,
			TableName:       TableSettings,
			NewValue:        "version 1",
			Reason:          req.Reason,
			SettingsVersion: next.Version,
		}}
	}

	changes := summary.All()
	records := make([]*AuditRecord, 0, len(changes))
	for _, c := range changes {
		records = append(records, &AuditRecord{
			ID:              idgen.WithPrefix(idgen.PrefixAudit),
			CreatedAt:       at,
			ChangedBy:       req.ChangedBy,
			Action:          AuditUpdated,
			TableName:       c.Table,
			FieldChanged:    c.Field,
			OldValue:        c.Old,
			NewValue:        c.New,
			Reason:          req.Reason,
			SettingsVersion: next.Version,
		})
	}
	return records
}

// GetActive returns the active settings, or nil if nothing was activated yet.
func (s *Service) GetActive(ctx context.Context) (*Settings, error) {
	active, err := s.store.GetActive(ctx)
	if errors.Is(err, ErrNoActiveSettings) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read active settings", Err: err}
	}
	return active, nil
}

// GetVersion returns a historical version. ErrVersionNotFound if it does not exist.
func (s *Service) GetVersion(ctx context.Context, version int) (*Settings, error) {
	v, err := s.store.GetVersion(ctx, version)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return nil, &PersistenceError{Op: "read settings version", Err: err}
	}
	return v, err
}

// ListVersions returns up to limit versions, newest first.
func (s *Service) ListVersions(ctx context.Context, limit int) ([]*Settings, error) {
	versions, err := s.store.ListVersions(ctx, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list settings versions", Err: err}
	}
	return versions, nil
}

// ListAudit returns up to limit audit records, newest first.
func (s *Service) ListAudit(ctx context.Context, limit int) ([]*AuditRecord, error) {
	records, err := s.store.ListAudit(ctx, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list audit records", Err: err}
	}
	return records, nil
}

// DiffVersions summarises what changed between two stored versions.
func (s *Service) DiffVersions(ctx context.Context, from, to int) (*ChangeSummary, error) {
	a, err := s.GetVersion(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("version %d: %w", from, err)
	}
	b, err := s.GetVersion(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("version %d: %w", to, err)
	}

	var names map[string]string
	if s.plans != nil {
		// Labels only; fall back to plan IDs if the catalog is unavailable.
		if n, err := s.plans.PlanNames(ctx); err == nil {
			names = n
		}
	}
	return DiffWithPlanNames(a, b, names), nil
}

// Computation is the result of Compute.
type Computation struct {
	SettingsVersion int             `json:"settingsVersion"`
	Event           PaymentEvent    `json:"event"`
	Resolution      Resolution      `json:"resolution"`
	Commission      decimal.Decimal `json:"commission"`
	Payouts         []Payout        `json:"payouts,omitempty"`
}

// Compute evaluates the active settings for one payment event. With
// UseCatalogPrice set the amount is the plan's catalog price for the cadence.
// When chain is non-empty the event is also split across the recruiting chain.
func (s *Service) Compute(ctx context.Context, ev PaymentEvent, chain []string) (*Computation, error) {
	ctx, span := traces.StartSpan(ctx, "commission.Compute",
		traces.PlanID(ev.PlanID), traces.Cadence(string(ev.Cadence)), traces.CycleIndex(ev.CycleIndex))
	defer span.End()

	if ev.CycleIndex < 1 {
		return nil, fmt.Errorf("commission: cycle index must be at least 1 (got %d)", ev.CycleIndex)
	}

	active, err := s.GetActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if active == nil {
		err := &ConfigurationError{PlanID: ev.PlanID, Cadence: ev.Cadence, Reason: "no active settings"}
		span.RecordError(err)
		return nil, err
	}

	if ev.UseCatalogPrice {
		if s.plans == nil {
			return nil, errors.New("commission: no plan catalog to price the event")
		}
		price, err := s.plans.PlanPrice(ctx, ev.PlanID, ev.Cadence)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("plan price: %w", err)
		}
		ev.Amount = price
		ev.UseCatalogPrice = false
	}
	span.SetAttributes(traces.Amount(ev.Amount.String()), traces.SettingsVersion(active.Version))

	res, err := ResolveRule(active, ev.PlanID, ev.Cadence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve rule")
		return nil, err
	}

	out := &Computation{
		SettingsVersion: active.Version,
		Event:           ev,
		Resolution:      res,
		Commission:      decimal.Zero,
	}
	if res.Earns {
		out.Commission = Evaluate(res.Rule, ev.CycleIndex, ev.Amount)
	}
	if len(chain) > 0 {
		out.Payouts, err = ComputeChain(active, ev, chain)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	metrics.ComputationsTotal.WithLabelValues(string(res.Source), strconv.FormatBool(res.Earns)).Inc()
	metrics.CommissionAmount.Observe(out.Commission.InexactFloat64())
	return out, nil
}

// ParseCadence parses a cadence from user input.
func ParseCadence(v string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(v)))
	if !c.Valid() {
		return "", fmt.Errorf("commission: unknown cadence %q", v)
	}
	return c, nil
}
