package commission

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !dec(want).Equal(got) {
		assert.Fail(t, fmt.Sprintf("amount mismatch: want %s, got %s", want, got), msgAndArgs...)
	}
}

func hybridRule(onetime, recurring string, duration int) Rule {
	return Rule{
		Model:             ModelHybrid,
		OnetimeType:       AmountPercentage,
		OnetimeValue:      dec(onetime),
		RecurringType:     AmountPercentage,
		RecurringValue:    dec(recurring),
		RecurringDuration: duration,
	}
}

func oneTimeRule(t AmountType, value string) Rule {
	return Rule{
		Model:             ModelOneTime,
		OnetimeType:       t,
		OnetimeValue:      dec(value),
		RecurringType:     AmountPercentage,
		RecurringValue:    decimal.Zero,
		RecurringDuration: DefaultRecurringDuration,
	}
}

func recurringRule(value string, duration int) Rule {
	return Rule{
		Model:             ModelRecurring,
		OnetimeType:       AmountPercentage,
		OnetimeValue:      decimal.Zero,
		RecurringType:     AmountPercentage,
		RecurringValue:    dec(value),
		RecurringDuration: duration,
	}
}

// validSettings is a candidate that passes every check.
func validSettings() *Settings {
	return &Settings{
		EnableMultiTier:             true,
		AutoApproveApplications:     false,
		SendWelcomeEmail:            true,
		SendCommissionNotifications: true,
		MinPayoutThreshold:          dec("500"),
		PaymentSchedule:             ScheduleMonthly,
		PaymentDay:                  "1st",
		MaxHelpersPerRecruiter:      UnlimitedHelpers,
		ReferralCodePrefix:          "HLP",
		AutoGenerateCodes:           true,
		Network: NetworkRules{
			Monthly: hybridRule("10", "5", 12),
			Yearly:  oneTimeRule(AmountPercentage, "15"),
		},
		PlanOverrides: map[string]PlanOverride{},
	}
}

// fakePlans is an in-package PlanLookup.
type fakePlans struct {
	names  map[string]string
	prices map[string][2]decimal.Decimal
	err    error
}

func newFakePlans() *fakePlans {
	return &fakePlans{
		names: map[string]string{"starter": "Starter", "growth": "Growth", "pro": "Pro"},
		prices: map[string][2]decimal.Decimal{
			"starter": {dec("499"), dec("4990")},
			"growth":  {dec("999"), dec("9990")},
			"pro":     {dec("1999"), dec("19990")},
		},
	}
}

func (f *fakePlans) PlanNames(ctx context.Context) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}

func (f *fakePlans) PlanPrice(ctx context.Context, planID string, cadence Cadence) (decimal.Decimal, error) {
	p, ok := f.prices[planID]
	if !ok {
		return decimal.Zero, ErrUnknownPlan
	}
	if cadence == CadenceYearly {
		return p[1], nil
	}
	return p[0], nil
}
