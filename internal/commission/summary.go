package commission

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes fixed amounts in change messages.
const CurrencySymbol = "₹"

const notSet = "not set"

// Category groups changes for display.
type Category string

const (
	CategoryModel       Category = "commissionModel"
	CategoryRates       Category = "commissionRates"
	CategoryToggles     Category = "featureToggles"
	CategoryPayment     Category = "paymentSettings"
	CategoryRecruitment Category = "recruitmentSettings"
)

// Change is one changed leaf field.
type Change struct {
	Category Category `json:"category"`
	Field    string   `json:"field"`
	Table    string   `json:"table"`
	Old      string   `json:"old"`
	New      string   `json:"new"`
	Message  string   `json:"message"`
}

// ChangeSummary is the categorized difference between two settings versions.
type ChangeSummary struct {
	CommissionModel     []Change `json:"commissionModel"`
	CommissionRates     []Change `json:"commissionRates"`
	FeatureToggles      []Change `json:"featureToggles"`
	PaymentSettings     []Change `json:"paymentSettings"`
	RecruitmentSettings []Change `json:"recruitmentSettings"`
}

func newSummary() *ChangeSummary {
	return &ChangeSummary{
		CommissionModel:     []Change{},
		CommissionRates:     []Change{},
		FeatureToggles:      []Change{},
		PaymentSettings:     []Change{},
		RecruitmentSettings: []Change{},
	}
}

// All returns every change in category order.
func (cs *ChangeSummary) All() []Change {
	var out []Change
	out = append(out, cs.CommissionModel...)
	out = append(out, cs.CommissionRates...)
	out = append(out, cs.FeatureToggles...)
	out = append(out, cs.PaymentSettings...)
	out = append(out, cs.RecruitmentSettings...)
	return out
}

// Len is the total number of changes.
func (cs *ChangeSummary) Len() int {
	return len(cs.CommissionModel) + len(cs.CommissionRates) + len(cs.FeatureToggles) +
		len(cs.PaymentSettings) + len(cs.RecruitmentSettings)
}

// Messages returns the human-readable lines per category, omitting empty ones.
func (cs *ChangeSummary) Messages() map[Category][]string {
	out := make(map[Category][]string)
	for _, c := range cs.All() {
		out[c.Category] = append(out[c.Category], c.Message)
	}
	return out
}

// Diff compares two versions field by field. A nil prev (first activation)
// yields an empty summary. Diff is deterministic and has no side effects, so
// any two historical versions can be compared.
func Diff(prev, next *Settings) *ChangeSummary {
	return DiffWithPlanNames(prev, next, nil)
}

// DiffWithPlanNames is Diff with plans labelled by display name where known.
func DiffWithPlanNames(prev, next *Settings, names map[string]string) *ChangeSummary {
	d := &differ{summary: newSummary(), names: names}
	if prev == nil || next == nil {
		return d.summary
	}

	d.boolean(CategoryToggles, TableSettings, "enableMultiTier", "Multi-tier commissions", prev.EnableMultiTier, next.EnableMultiTier)
	d.boolean(CategoryToggles, TableSettings, "autoApproveApplications", "Auto-approve helper applications", prev.AutoApproveApplications, next.AutoApproveApplications)
	d.boolean(CategoryToggles, TableSettings, "sendWelcomeEmail", "Welcome e-mail", prev.SendWelcomeEmail, next.SendWelcomeEmail)
	d.boolean(CategoryToggles, TableSettings, "sendCommissionNotifications", "Commission notifications", prev.SendCommissionNotifications, next.SendCommissionNotifications)

	if !prev.MinPayoutThreshold.Equal(next.MinPayoutThreshold) {
		d.add(CategoryPayment, TableSettings, "minPayoutThreshold", "Minimum payout threshold",
			formatMoney(prev.MinPayoutThreshold), formatMoney(next.MinPayoutThreshold))
	}
	d.str(CategoryPayment, TableSettings, "paymentSchedule", "Payment schedule", string(prev.PaymentSchedule), string(next.PaymentSchedule))
	d.str(CategoryPayment, TableSettings, "paymentDay", "Payment day", prev.PaymentDay, next.PaymentDay)

	if prev.MaxHelpersPerRecruiter != next.MaxHelpersPerRecruiter {
		d.add(CategoryRecruitment, TableSettings, "maxHelpersPerRecruiter", "Max helpers per recruiter",
			formatHelperLimit(prev.MaxHelpersPerRecruiter), formatHelperLimit(next.MaxHelpersPerRecruiter))
	}
	d.str(CategoryRecruitment, TableSettings, "referralCodePrefix", "Referral code prefix", prev.ReferralCodePrefix, next.ReferralCodePrefix)
	d.boolean(CategoryRecruitment, TableSettings, "autoGenerateCodes", "Auto-generate referral codes", prev.AutoGenerateCodes, next.AutoGenerateCodes)

	for _, c := range Cadences {
		a, b := prev.Network.For(c), next.Network.For(c)
		d.rule(TableNetworkRules, "network."+string(c), "Network "+string(c), c, &a, &b)
	}

	for _, id := range unionPlanIDs(prev.PlanOverrides, next.PlanOverrides) {
		a, inPrev := prev.PlanOverrides[id]
		b, inNext := next.PlanOverrides[id]
		path := "planOverrides." + id
		label := "Plan " + d.planName(id)

		switch {
		case inPrev && inNext:
			d.boolean(CategoryToggles, TablePlanRules, path+".enabled", label+" commission", a.Enabled, b.Enabled)
		case inNext:
			d.add(CategoryToggles, TablePlanRules, path+".enabled", label+" commission", notSet, formatEnabled(b.Enabled))
		default:
			d.add(CategoryToggles, TablePlanRules, path+".enabled", label+" commission", formatEnabled(a.Enabled), notSet)
		}

		for _, c := range Cadences {
			var ra, rb *Rule
			if inPrev {
				r := a.For(c)
				ra = &r
			}
			if inNext {
				r := b.For(c)
				rb = &r
			}
			d.rule(TablePlanRules, path+"."+string(c), label+" "+string(c), c, ra, rb)
		}
	}

	return d.summary
}

type differ struct {
	summary *ChangeSummary
	names   map[string]string
}

func (d *differ) planName(id string) string {
	if n, ok := d.names[id]; ok && n != "" {
		return n
	}
	return id
}

func (d *differ) add(cat Category, table, field, label, before, after string) {
	c := Change{
		Category: cat,
		Field:    field,
		Table:    table,
		Old:      before,
		New:      after,
		Message:  fmt.Sprintf("%s: %s → %s", label, before, after),
	}
	switch cat {
	case CategoryModel:
		d.summary.CommissionModel = append(d.summary.CommissionModel, c)
	case CategoryRates:
		d.summary.CommissionRates = append(d.summary.CommissionRates, c)
	case CategoryToggles:
		d.summary.FeatureToggles = append(d.summary.FeatureToggles, c)
	case CategoryPayment:
		d.summary.PaymentSettings = append(d.summary.PaymentSettings, c)
	case CategoryRecruitment:
		d.summary.RecruitmentSettings = append(d.summary.RecruitmentSettings, c)
	}
}

func (d *differ) boolean(cat Category, table, field, label string, a, b bool) {
	if a != b {
		d.add(cat, table, field, label, formatEnabled(a), formatEnabled(b))
	}
}

func (d *differ) str(cat Category, table, field, label, a, b string) {
	if a != b {
		d.add(cat, table, field, label, orNotSet(a), orNotSet(b))
	}
}

// rule diffs the six leaves of a rule. A nil side means the rule does not
// exist in that version, so every leaf of the other side counts as changed.
func (d *differ) rule(table, path, label string, c Cadence, a, b *Rule) {
	if a == nil && b == nil {
		return
	}
	both := a != nil && b != nil

	if !both || a.Model != b.Model {
		d.add(CategoryModel, table, path+".model", label+" model",
			ruleLeaf(a, func(r *Rule) string { return r.Model.DisplayName() }),
			ruleLeaf(b, func(r *Rule) string { return r.Model.DisplayName() }))
	}
	if !both || a.OnetimeType != b.OnetimeType {
		d.add(CategoryRates, table, path+".onetimeType", label+" one-time type",
			ruleLeaf(a, func(r *Rule) string { return formatAmountType(r.OnetimeType) }),
			ruleLeaf(b, func(r *Rule) string { return formatAmountType(r.OnetimeType) }))
	}
	if !both || !a.OnetimeValue.Equal(b.OnetimeValue) {
		d.add(CategoryRates, table, path+".onetimeValue", label+" one-time value",
			ruleLeaf(a, func(r *Rule) string { return formatValue(r.OnetimeType, r.OnetimeValue) }),
			ruleLeaf(b, func(r *Rule) string { return formatValue(r.OnetimeType, r.OnetimeValue) }))
	}
	if !both || a.RecurringType != b.RecurringType {
		d.add(CategoryRates, table, path+".recurringType", label+" recurring type",
			ruleLeaf(a, func(r *Rule) string { return formatAmountType(r.RecurringType) }),
			ruleLeaf(b, func(r *Rule) string { return formatAmountType(r.RecurringType) }))
	}
	if !both || !a.RecurringValue.Equal(b.RecurringValue) {
		d.add(CategoryRates, table, path+".recurringValue", label+" recurring value",
			ruleLeaf(a, func(r *Rule) string { return formatValue(r.RecurringType, r.RecurringValue) }),
			ruleLeaf(b, func(r *Rule) string { return formatValue(r.RecurringType, r.RecurringValue) }))
	}
	if !both || a.RecurringDuration != b.RecurringDuration {
		d.add(CategoryRates, table, path+".recurringDuration", label+" recurring duration",
			ruleLeaf(a, func(r *Rule) string { return formatDuration(r.RecurringDuration, c) }),
			ruleLeaf(b, func(r *Rule) string { return formatDuration(r.RecurringDuration, c) }))
	}
}

func ruleLeaf(r *Rule, render func(*Rule) string) string {
	if r == nil {
		return notSet
	}
	return render(r)
}

func formatValue(t AmountType, v decimal.Decimal) string {
	if t == AmountFixed {
		return formatMoney(v)
	}
	return v.String() + "%"
}

func formatMoney(v decimal.Decimal) string {
	return CurrencySymbol + v.String()
}

func formatAmountType(t AmountType) string {
	switch t {
	case AmountPercentage:
		return "Percentage"
	case AmountFixed:
		return "Fixed"
	}
	return orNotSet(string(t))
}

func formatDuration(n int, c Cadence) string {
	unit := "months"
	if c == CadenceYearly {
		unit = "years"
	}
	if n == 1 {
		unit = unit[:len(unit)-1]
	}
	return strconv.Itoa(n) + " " + unit
}

func formatEnabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func formatHelperLimit(n int) string {
	if n == UnlimitedHelpers {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func orNotSet(s string) string {
	if s == "" {
		return notSet
	}
	return s
}

func unionPlanIDs(a, b map[string]PlanOverride) []string {
	merged := make(map[string]PlanOverride, len(a)+len(b))
	for id, o := range a {
		merged[id] = o
	}
	for id, o := range b {
		merged[id] = o
	}
	return sortedPlanIDs(merged)
}
