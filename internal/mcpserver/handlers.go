package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/storefront-admin/commissions/internal/commission"
)

const defaultToolLimit = 20

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleGetActiveSettings describes the active settings version.
func (h *Handlers) HandleGetActiveSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := h.client.GetActiveSettings(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return mcp.NewToolResultText("No commission settings have been activated yet."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get active settings: %v", err)), nil
	}
	return mcp.NewToolResultText(formatSettings(s)), nil
}

// HandleComputeCommission computes the commission for one payment.
func (h *Handlers) HandleComputeCommission(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := strings.TrimSpace(req.GetString("plan_id", ""))
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	cadence, err := commission.ParseCadence(req.GetString("cadence", ""))
	if err != nil {
		return mcp.NewToolResultError("cadence must be 'monthly' or 'yearly'"), nil
	}
	cycle := req.GetInt("cycle_index", 0)
	if cycle < 1 {
		return mcp.NewToolResultError("cycle_index must be at least 1"), nil
	}

	body := commission.ComputeRequest{PlanID: planID, Cadence: cadence, CycleIndex: cycle}
	if raw := strings.TrimSpace(req.GetString("amount", "")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("amount %q is not a number", raw)), nil
		}
		body.Amount = &amount
	}
	body.Chain = splitChain(req.GetString("chain", ""))

	out, err := h.client.Compute(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute commission: %v", err)), nil
	}
	return mcp.NewToolResultText(formatComputation(out)), nil
}

// HandleListVersions lists settings versions.
func (h *Handlers) HandleListVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	versions, err := h.client.ListVersions(ctx, req.GetInt("limit", defaultToolLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list versions: %v", err)), nil
	}
	if len(versions) == 0 {
		return mcp.NewToolResultText("No commission settings versions yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d version(s):\n\n", len(versions))
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = " [active]"
		}
		fmt.Fprintf(&sb, "v%d%s  %s by %s\n", v.Version, active,
			v.CreatedAt.Format("2006-01-02 15:04 MST"), orDash(v.CreatedBy))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleDiffVersions summarises changes between two versions.
func (h *Handlers) HandleDiffVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := req.GetInt("from", 0)
	to := req.GetInt("to", 0)
	if from < 1 || to < 1 {
		return mcp.NewToolResultError("from and to must be positive version numbers"), nil
	}

	diff, err := h.client.DiffVersions(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to diff versions: %v", err)), nil
	}
	return mcp.NewToolResultText(formatDiff(diff)), nil
}

// HandleListAudit shows the audit trail.
func (h *Handlers) HandleListAudit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := h.client.ListAudit(ctx, req.GetInt("limit", defaultToolLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list audit records: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("The audit trail is empty."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d audit record(s):\n\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&sb, "v%d %s %s", r.SettingsVersion, r.CreatedAt.Format("2006-01-02 15:04"), r.Action)
		if r.FieldChanged != "" {
			fmt.Fprintf(&sb, " %s.%s: %s -> %s", r.TableName, r.FieldChanged, orDash(r.OldValue), orDash(r.NewValue))
		}
		fmt.Fprintf(&sb, " (by %s)", orDash(r.ChangedBy))
		if r.Reason != "" {
			fmt.Fprintf(&sb, " reason: %s", r.Reason)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleValidateSettings validates a candidate without activating it.
func (h *Handlers) HandleValidateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := settingsArgument(req.GetArguments()["settings"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := h.client.ValidateSettings(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate settings: %v", err)), nil
	}
	if res.IsValid {
		return mcp.NewToolResultText("The settings are valid and can be activated."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "The settings are invalid (%d error(s)):\n", len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(&sb, "  - %s\n", e)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListPlans lists the plan catalog.
func (h *Handlers) HandleListPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := h.client.ListPlans(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list plans: %v", err)), nil
	}
	if len(all) == 0 {
		return mcp.NewToolResultText("No subscription plans found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d plan(s):\n\n", len(all))
	for _, p := range all {
		status := ""
		if !p.IsActive {
			status = " [retired]"
		}
		fmt.Fprintf(&sb, "%s (%s)%s: ₹%s/month, ₹%s/year\n", p.Name, p.ID, status,
			p.MonthlyPrice.StringFixed(2), p.YearlyPrice.StringFixed(2))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// settingsArgument accepts the candidate as a JSON object or a JSON string.
func settingsArgument(v any) (json.RawMessage, error) {
	switch s := v.(type) {
	case nil:
		return nil, errors.New("settings is required")
	case string:
		if !json.Valid([]byte(s)) {
			return nil, errors.New("settings must be a JSON object")
		}
		return json.RawMessage(s), nil
	case map[string]any:
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("settings must be a JSON object")
}

func splitChain(v string) []string {
	var out []string
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func formatSettings(s *commission.Settings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Commission settings v%d (activated %s by %s)\n\n",
		s.Version, s.CreatedAt.Format("2006-01-02 15:04 MST"), orDash(s.CreatedBy))

	sb.WriteString("Network rules:\n")
	for _, c := range commission.Cadences {
		fmt.Fprintf(&sb, "  %s: %s\n", c, formatRule(s.Network.For(c)))
	}

	if len(s.PlanOverrides) > 0 {
		sb.WriteString("\nPlan overrides:\n")
		ids := make([]string, 0, len(s.PlanOverrides))
		for id := range s.PlanOverrides {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			o := s.PlanOverrides[id]
			if !o.Enabled {
				fmt.Fprintf(&sb, "  %s: disabled (earns nothing)\n", id)
				continue
			}
			for _, c := range commission.Cadences {
				fmt.Fprintf(&sb, "  %s %s: %s\n", id, c, formatRule(o.For(c)))
			}
		}
	}

	sb.WriteString("\nPayouts:\n")
	fmt.Fprintf(&sb, "  Minimum threshold: ₹%s\n", s.MinPayoutThreshold.StringFixed(2))
	fmt.Fprintf(&sb, "  Schedule: %s (%s)\n", orDash(string(s.PaymentSchedule)), orDash(s.PaymentDay))
	sb.WriteString("\nRecruitment:\n")
	if s.MaxHelpersPerRecruiter == commission.UnlimitedHelpers {
		sb.WriteString("  Max helpers per recruiter: unlimited\n")
	} else {
		fmt.Fprintf(&sb, "  Max helpers per recruiter: %d\n", s.MaxHelpersPerRecruiter)
	}
	fmt.Fprintf(&sb, "  Referral code prefix: %s\n", orDash(s.ReferralCodePrefix))
	fmt.Fprintf(&sb, "  Multi-tier: %s\n", onOff(s.EnableMultiTier))
	return sb.String()
}

func formatRule(r commission.Rule) string {
	if r.IsZero() {
		return "not configured"
	}
	var parts []string
	if r.Model.PaysOnetime() {
		parts = append(parts, "first payment "+formatAmount(r.OnetimeType, r.OnetimeValue))
	}
	if r.Model.PaysRecurring() {
		parts = append(parts, fmt.Sprintf("then %s for %d cycle(s)",
			formatAmount(r.RecurringType, r.RecurringValue), r.RecurringDuration))
	}
	return r.Model.DisplayName() + ": " + strings.Join(parts, ", ")
}

func formatAmount(t commission.AmountType, v decimal.Decimal) string {
	if t == commission.AmountFixed {
		return "₹" + v.StringFixed(2)
	}
	return v.String() + "%"
}

func formatComputation(out *commission.Computation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Commission: ₹%s\n", out.Commission.StringFixed(2))
	if out.SettingsVersion == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "Settings version: v%d\n", out.SettingsVersion)
	fmt.Fprintf(&sb, "Payment: %s %s cycle %d, ₹%s\n", out.Event.PlanID, out.Event.Cadence,
		out.Event.CycleIndex, out.Event.Amount.StringFixed(2))
	if out.Resolution.Earns {
		fmt.Fprintf(&sb, "Rule (%s): %s\n", out.Resolution.Source, formatRule(out.Resolution.Rule))
	} else {
		sb.WriteString("Rule: plan override disabled, no commission\n")
	}
	if len(out.Payouts) > 0 {
		sb.WriteString("\nPayouts:\n")
		for _, p := range out.Payouts {
			fmt.Fprintf(&sb, "  tier %d %s: ₹%s\n", p.Tier, p.HelperID, p.Amount.StringFixed(2))
		}
	}
	return sb.String()
}

var categoryTitles = []struct {
	cat   commission.Category
	title string
}{
	{commission.CategoryModel, "Commission model"},
	{commission.CategoryRates, "Commission rates"},
	{commission.CategoryToggles, "Feature toggles"},
	{commission.CategoryPayment, "Payment settings"},
	{commission.CategoryRecruitment, "Recruitment settings"},
}

func formatDiff(d *DiffResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Changes from v%d to v%d:\n", d.From, d.To)
	n := 0
	for _, ct := range categoryTitles {
		lines := d.Messages[ct.cat]
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", ct.title)
		for _, l := range lines {
			fmt.Fprintf(&sb, "  - %s\n", l)
			n++
		}
	}
	if n == 0 {
		sb.WriteString("\nNo changes.\n")
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
