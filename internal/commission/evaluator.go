package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the precision commission amounts are rounded to.
const AmountPlaces = 2

var hundred = decimal.NewFromInt(100)

// Evaluate returns the commission owed for one billing cycle under rule.
//
// cycleIndex 1 is the onboarding payment. One-time pays only there; recurring
// pays on cycles 1..d; hybrid pays one-time on cycle 1 and recurring on cycles
// 2..d+1. A non-positive subscription amount never earns anything.
//
// Evaluate panics on a malformed rule or a cycleIndex below 1. Validation is
// responsible for keeping such rules out of active settings.
func Evaluate(rule Rule, cycleIndex int, amount decimal.Decimal) decimal.Decimal {
	if cycleIndex < 1 {
		panic(fmt.Sprintf("commission: cycle index %d out of range", cycleIndex))
	}
	if rule.Model.PaysRecurring() &&
		(rule.RecurringDuration < MinRecurringDuration || rule.RecurringDuration > MaxRecurringDuration) {
		panic(fmt.Sprintf("commission: recurring duration %d out of range", rule.RecurringDuration))
	}
	if !amount.IsPositive() {
		return decimal.Zero
	}

	switch rule.Model {
	case ModelOneTime:
		if cycleIndex == 1 {
			return apply(rule.OnetimeType, rule.OnetimeValue, amount)
		}
	case ModelRecurring:
		if cycleIndex <= rule.RecurringDuration {
			return apply(rule.RecurringType, rule.RecurringValue, amount)
		}
	case ModelHybrid:
		if cycleIndex == 1 {
			return apply(rule.OnetimeType, rule.OnetimeValue, amount)
		}
		if cycleIndex <= rule.RecurringDuration+1 {
			return apply(rule.RecurringType, rule.RecurringValue, amount)
		}
	default:
		panic(fmt.Sprintf("commission: unknown model %q", rule.Model))
	}
	return decimal.Zero
}

func apply(t AmountType, value, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case AmountPercentage:
		return amount.Mul(value).Div(hundred).Round(AmountPlaces)
	case AmountFixed:
		return value.Round(AmountPlaces)
	}
	panic(fmt.Sprintf("commission: unknown amount type %q", t))
}

// LastPayingCycle is the final cycle index on which rule pays anything.
func LastPayingCycle(rule Rule) int {
	switch rule.Model {
	case ModelRecurring:
		return rule.RecurringDuration
	case ModelHybrid:
		return rule.RecurringDuration + 1
	}
	return 1
}
