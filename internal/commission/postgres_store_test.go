//go:build integration

package commission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-admin/commissions/internal/idgen"
	"github.com/storefront-admin/commissions/internal/testutil"
)

func stored(version int, s *Settings) *Settings {
	s = s.Normalize()
	s.ID = idgen.WithPrefix(idgen.PrefixSettings)
	s.Version = version
	s.IsActive = true
	s.CreatedBy = "ops@example.com"
	s.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return s
}

func TestPostgresStore_ActivateRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.GetActive(ctx)
	require.ErrorIs(t, err, ErrNoActiveSettings)

	s := validSettings()
	s.PlanOverrides["pro"] = PlanOverride{
		Enabled: true,
		Monthly: hybridRule("15", "7.5", 6),
		Yearly:  oneTimeRule(AmountFixed, "750"),
	}
	s.PlanOverrides["starter"] = PlanOverride{Enabled: false}
	v1 := stored(1, s)
	rec := &AuditRecord{
		ID: idgen.WithPrefix(idgen.PrefixAudit), CreatedAt: v1.CreatedAt, ChangedBy: "ops@example.com",
		Action: AuditCreated, TableName: TableSettings, NewValue: "version 1", SettingsVersion: 1,
	}
	require.NoError(t, store.Activate(ctx, v1, 0, []*AuditRecord{rec}))

	got, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, got.ID)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.IsActive)
	assert.True(t, got.MinPayoutThreshold.Equal(v1.MinPayoutThreshold))
	assert.Equal(t, ScheduleMonthly, got.PaymentSchedule)
	assert.Equal(t, UnlimitedHelpers, got.MaxHelpersPerRecruiter)
	assert.Equal(t, ModelHybrid, got.Network.Monthly.Model)
	assert.True(t, got.Network.Monthly.OnetimeValue.Equal(dec("10")))
	require.Len(t, got.PlanOverrides, 2)
	assert.True(t, got.PlanOverrides["pro"].Enabled)
	assert.True(t, got.PlanOverrides["pro"].Monthly.RecurringValue.Equal(dec("7.5")))
	assert.Equal(t, AmountFixed, got.PlanOverrides["pro"].Yearly.OnetimeType)
	assert.False(t, got.PlanOverrides["starter"].Enabled)

	// Diffing the stored copy against the original finds nothing.
	assert.Equal(t, 0, Diff(v1, got).Len())

	records, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, AuditCreated, records[0].Action)
}

func TestPostgresStore_SingleActiveAcrossVersions(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	for v := 1; v <= 4; v++ {
		s := validSettings()
		s.MaxHelpersPerRecruiter = v * 10
		require.NoError(t, store.Activate(ctx, stored(v, s), v-1, nil))

		var active int
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM commission_settings WHERE is_active`).Scan(&active))
		assert.Equal(t, 1, active, "after version %d", v)
	}

	versions, err := store.ListVersions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, versions, 4)
	assert.Equal(t, 4, versions[0].Version)
	assert.True(t, versions[0].IsActive)
	assert.False(t, versions[3].IsActive)
	for _, v := range versions {
		assert.Equal(t, ModelHybrid, v.Network.Monthly.Model, "version %d", v.Version)
		assertAmount(t, "10", v.Network.Monthly.OnetimeValue)
		assertAmount(t, "15", v.Network.Yearly.OnetimeValue)
		assert.NotNil(t, v.PlanOverrides)
	}

	v2, err := store.GetVersion(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 20, v2.MaxHelpersPerRecruiter)
	assert.Equal(t, ModelHybrid, v2.Network.Monthly.Model)

	_, err = store.GetVersion(ctx, 99)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestPostgresStore_StaleExpectedVersionConflicts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.Activate(ctx, stored(1, validSettings()), 0, nil))
	require.NoError(t, store.Activate(ctx, stored(2, validSettings()), 1, nil))

	err := store.Activate(ctx, stored(2, validSettings()), 1, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)

	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
}

func TestPostgresStore_ConcurrentActivations(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.Activate(ctx, stored(1, validSettings()), 0, nil))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Activate(ctx, stored(2, validSettings()), 1, nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrVersionConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	var active int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commission_settings WHERE is_active`).Scan(&active))
	assert.Equal(t, 1, active)
}

func TestPostgresStore_ServiceIntegration(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	svc := NewService(NewPostgresStore(db), newFakePlans())
	ctx := context.Background()

	_, err := svc.Activate(ctx, ActivateRequest{Candidate: validSettings(), ChangedBy: "ops@example.com"})
	require.NoError(t, err)

	next := validSettings()
	next.PaymentSchedule = ScheduleBiweekly
	next.PaymentDay = "monday"
	act, err := svc.Activate(ctx, ActivateRequest{Candidate: next, ChangedBy: "ops@example.com", Reason: "cash flow"})
	require.NoError(t, err)
	assert.Equal(t, 2, act.Settings.Version)

	records, err := svc.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records[:2] {
		assert.Equal(t, AuditUpdated, r.Action)
		assert.Equal(t, "cash flow", r.Reason)
	}

	out, err := svc.Compute(ctx, PaymentEvent{PlanID: "growth", Cadence: CadenceMonthly, CycleIndex: 1, UseCatalogPrice: true}, nil)
	require.NoError(t, err)
	assertAmount(t, "99.9", out.Commission)
}
