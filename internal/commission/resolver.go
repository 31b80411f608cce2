package commission

import (
	"github.com/shopspring/decimal"
)

// RuleSource says where a resolved rule came from.
type RuleSource string

const (
	SourcePlan    RuleSource = "plan"
	SourceNetwork RuleSource = "network"
)

// Resolution is the effective rule for a plan and cadence.
// Earns is false when the plan's override is disabled.
type Resolution struct {
	Rule   Rule       `json:"rule"`
	Earns  bool       `json:"earns"`
	Source RuleSource `json:"source"`
}

// ResolveRule picks the rule governing planID at cadence.
//
// An enabled plan override wins. A disabled override earns nothing and never
// falls back to the network rule. Without an override the network rule for
// the cadence applies; if that rule was never set up, a *ConfigurationError
// is returned.
func ResolveRule(s *Settings, planID string, cadence Cadence) (Resolution, error) {
	if s == nil {
		return Resolution{}, &ConfigurationError{PlanID: planID, Cadence: cadence, Reason: "no active settings"}
	}
	if !cadence.Valid() {
		return Resolution{}, &ConfigurationError{PlanID: planID, Cadence: cadence, Reason: "unknown cadence"}
	}

	if o, ok := s.PlanOverrides[planID]; ok {
		return Resolution{Rule: o.For(cadence), Earns: o.Enabled, Source: SourcePlan}, nil
	}

	rule := s.Network.For(cadence)
	if rule.IsZero() {
		return Resolution{}, &ConfigurationError{PlanID: planID, Cadence: cadence, Reason: "network rule not initialised"}
	}
	return Resolution{Rule: rule, Earns: true, Source: SourceNetwork}, nil
}

// ComputeCommission resolves the rule for planID and evaluates it for one cycle.
func ComputeCommission(s *Settings, planID string, cadence Cadence, cycleIndex int, amount decimal.Decimal) (decimal.Decimal, error) {
	res, err := ResolveRule(s, planID, cadence)
	if err != nil {
		return decimal.Zero, err
	}
	if !res.Earns {
		return decimal.Zero, nil
	}
	return Evaluate(res.Rule, cycleIndex, amount), nil
}

// PaymentEvent is one subscription payment reported by billing.
// UseCatalogPrice asks Service.Compute to take Amount from the plan catalog;
// otherwise Amount is used as given, zero included.
type PaymentEvent struct {
	PlanID          string          `json:"planId"`
	Cadence         Cadence         `json:"cadence"`
	CycleIndex      int             `json:"cycleIndex"`
	Amount          decimal.Decimal `json:"amount"`
	UseCatalogPrice bool            `json:"-"`
}

// Payout is what one participant of a recruiting chain earns from an event.
type Payout struct {
	HelperID string          `json:"helperId"`
	Tier     int             `json:"tier"`
	Source   RuleSource      `json:"source"`
	Earns    bool            `json:"earns"`
	Amount   decimal.Decimal `json:"amount"`
}

// ComputeChain splits an event across a recruiting chain.
//
// chain[0] referred the subscribing store and earns the plan commission.
// chain[1] recruited chain[0] and earns the network commission, but only when
// multi-tier commission is enabled. Helpers further up earn nothing.
func ComputeChain(s *Settings, ev PaymentEvent, chain []string) ([]Payout, error) {
	if len(chain) == 0 {
		return nil, nil
	}

	res, err := ResolveRule(s, ev.PlanID, ev.Cadence)
	if err != nil {
		return nil, err
	}
	direct := Payout{HelperID: chain[0], Tier: 1, Source: res.Source, Earns: res.Earns, Amount: decimal.Zero}
	if res.Earns {
		direct.Amount = Evaluate(res.Rule, ev.CycleIndex, ev.Amount)
	}
	payouts := []Payout{direct}

	if len(chain) < 2 {
		return payouts, nil
	}
	upline := Payout{HelperID: chain[1], Tier: 2, Source: SourceNetwork, Amount: decimal.Zero}
	if s.EnableMultiTier {
		rule := s.Network.For(ev.Cadence)
		if rule.IsZero() {
			return nil, &ConfigurationError{PlanID: ev.PlanID, Cadence: ev.Cadence, Reason: "network rule not initialised"}
		}
		upline.Earns = true
		upline.Amount = Evaluate(rule, ev.CycleIndex, ev.Amount)
	}
	return append(payouts, upline), nil
}
