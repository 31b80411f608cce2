package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are what the LLM reads to decide which tool to use.

var ToolGetActiveSettings = mcp.NewTool("get_active_commission_settings",
	mcp.WithDescription(
		"Show the commission settings version currently in force: network rules per billing "+
			"cadence, plan overrides, payout threshold and schedule, and recruitment limits."),
)

var ToolComputeCommission = mcp.NewTool("compute_commission",
	mcp.WithDescription(
		"Compute the commission a helper earns for one subscription payment under the active "+
			"settings. Optionally split the payment across a recruiting chain to see each helper's payout."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("Subscription plan ID (e.g. 'starter', 'growth', 'pro')")),
	mcp.WithString("cadence",
		mcp.Required(),
		mcp.Description("Billing cadence of the payment"),
		mcp.Enum("monthly", "yearly")),
	mcp.WithNumber("cycle_index",
		mcp.Required(),
		mcp.Description("1-based billing cycle of the subscription (1 = first payment)")),
	mcp.WithString("amount",
		mcp.Description("Payment amount in rupees (e.g. '999'). Defaults to the plan's catalog price.")),
	mcp.WithString("chain",
		mcp.Description("Comma-separated helper IDs, direct referrer first (e.g. 'h_direct,h_recruiter')")),
)

var ToolListVersions = mcp.NewTool("list_commission_versions",
	mcp.WithDescription(
		"List commission settings versions, newest first, with who activated each and when."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of versions to return (default 20)")),
)

var ToolDiffVersions = mcp.NewTool("diff_commission_versions",
	mcp.WithDescription(
		"Summarise what changed between two commission settings versions, grouped by "+
			"commission model, rates, feature toggles, payment and recruitment settings."),
	mcp.WithNumber("from",
		mcp.Required(),
		mcp.Description("Older version number")),
	mcp.WithNumber("to",
		mcp.Required(),
		mcp.Description("Newer version number")),
)

var ToolListAudit = mcp.NewTool("list_commission_audit",
	mcp.WithDescription(
		"Show the commission settings audit trail: every changed field with old and new "+
			"values, the operator and the reason given."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of records to return (default 20)")),
)

var ToolValidateSettings = mcp.NewTool("validate_commission_settings",
	mcp.WithDescription(
		"Check a candidate commission settings document without activating it. "+
			"Returns every validation error at once."),
	mcp.WithObject("settings",
		mcp.Required(),
		mcp.Description("Candidate settings in the same shape get_active_commission_settings returns as JSON")),
)

var ToolListPlans = mcp.NewTool("list_subscription_plans",
	mcp.WithDescription(
		"List subscription plans with their monthly and yearly prices. Plan IDs are what "+
			"plan overrides and compute_commission refer to."),
)
