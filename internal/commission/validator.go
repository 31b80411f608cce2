package commission

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Result is the outcome of validating a candidate. Errors lists every
// violated rule, not just the first.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

var (
	weekdays = map[string]bool{
		"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
		"friday": true, "saturday": true, "sunday": true,
	}
	monthDays = map[string]bool{"1st": true, "15th": true, "last": true}

	// Stored amounts are NUMERIC(12,2).
	amountCeiling = decimal.New(1, 12-AmountPlaces)
)

// Validate checks a candidate before activation. It never panics on any input.
func Validate(s *Settings) Result {
	v := &validator{}
	if s == nil {
		v.addf("settings are required")
		return v.result()
	}

	v.rule("network monthly", s.Network.Monthly)
	v.rule("network yearly", s.Network.Yearly)

	for _, id := range sortedPlanIDs(s.PlanOverrides) {
		o := s.PlanOverrides[id]
		if !o.Enabled {
			continue
		}
		v.rule(fmt.Sprintf("plan %s monthly", id), o.Monthly)
		v.rule(fmt.Sprintf("plan %s yearly", id), o.Yearly)
		if o.Monthly.paysNothing() && o.Yearly.paysNothing() {
			v.addf("plan %s: commission enabled but helpers earn nothing", id)
		}
	}

	if s.MinPayoutThreshold.IsNegative() {
		v.addf("minimum payout threshold must not be negative (got %s)", s.MinPayoutThreshold)
	} else {
		v.storable("minimum payout threshold", s.MinPayoutThreshold)
	}
	v.paymentDay(s.PaymentSchedule, s.PaymentDay)

	switch n := utf8.RuneCountInString(s.ReferralCodePrefix); {
	case n == 0:
		v.addf("referral code prefix is required")
	case n > MaxReferralPrefixLen:
		v.addf("referral code prefix must be at most %d characters (got %d)", MaxReferralPrefixLen, n)
	}
	if s.MaxHelpersPerRecruiter < UnlimitedHelpers {
		v.addf("max helpers per recruiter must be -1 (unlimited) or more (got %d)", s.MaxHelpersPerRecruiter)
	}

	return v.result()
}

// ValidateWithPlans runs Validate and also rejects overrides for plans that
// are not in known.
func ValidateWithPlans(s *Settings, known map[string]bool) Result {
	res := Validate(s)
	if s == nil {
		return res
	}
	for _, id := range sortedPlanIDs(s.PlanOverrides) {
		if !known[id] {
			res.Errors = append(res.Errors, fmt.Sprintf("plan %s: unknown subscription plan", id))
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

type validator struct {
	errs []string
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validator) result() Result {
	errs := v.errs
	if errs == nil {
		errs = []string{}
	}
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

func (v *validator) rule(label string, r Rule) {
	if !r.Model.Valid() {
		v.addf("%s: unknown commission model %q", label, r.Model)
		return
	}
	if r.Model.PaysOnetime() {
		v.amount(label+" one-time", r.OnetimeType, r.OnetimeValue)
	}
	if r.Model.PaysRecurring() {
		v.amount(label+" recurring", r.RecurringType, r.RecurringValue)
		if r.RecurringDuration < MinRecurringDuration || r.RecurringDuration > MaxRecurringDuration {
			v.addf("%s: recurring duration must be between %d and %d (got %d)",
				label, MinRecurringDuration, MaxRecurringDuration, r.RecurringDuration)
		}
	}
}

func (v *validator) amount(label string, t AmountType, value decimal.Decimal) {
	switch t {
	case AmountPercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			v.addf("%s: percentage must be between 0 and %d (got %s)", label, MaxPercentage, value)
			return
		}
	case AmountFixed:
		if value.IsNegative() {
			v.addf("%s: fixed amount must not be negative (got %s)", label, value)
			return
		}
	default:
		v.addf("%s: unknown amount type %q", label, t)
		return
	}
	v.storable(label, value)
}

// storable rejects values that would be rounded or overflow on save.
func (v *validator) storable(label string, value decimal.Decimal) {
	if !value.Equal(value.Round(AmountPlaces)) {
		v.addf("%s: at most %d decimal places allowed (got %s)", label, AmountPlaces, value)
		return
	}
	if value.Abs().GreaterThanOrEqual(amountCeiling) {
		v.addf("%s: must be less than %s (got %s)", label, amountCeiling, value)
	}
}

func (v *validator) paymentDay(schedule PaymentSchedule, day string) {
	day = strings.ToLower(strings.TrimSpace(day))
	switch schedule {
	case ScheduleWeekly, ScheduleBiweekly:
		if !weekdays[day] {
			v.addf("payment day for a %s schedule must be a weekday name (got %q)", schedule, day)
		}
	case ScheduleMonthly:
		if !monthDays[day] {
			v.addf("payment day for a monthly schedule must be 1st, 15th or last (got %q)", day)
		}
	default:
		v.addf("payment schedule must be weekly, biweekly or monthly (got %q)", schedule)
	}
}

func sortedPlanIDs(m map[string]PlanOverride) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
