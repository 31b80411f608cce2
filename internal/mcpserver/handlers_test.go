package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-admin/commissions/internal/auth"
	"github.com/storefront-admin/commissions/internal/commission"
	"github.com/storefront-admin/commissions/internal/plans"
)

const (
	testSecret        = "test-admin-secret"
	testBillingSecret = "test-billing-secret"
)

// --- Test helpers ---

type testAPI struct {
	handlers *Handlers
	service  *commission.Service
}

// newTestAPI serves the real commission and plan handlers over httptest.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := plans.NewMemoryCatalog(plans.DefaultPlans()...)
	svc := commission.NewService(commission.NewMemoryStore(), plans.NewLookup(catalog))
	ch := commission.NewHandler(svc, 100)

	r := gin.New()
	v1 := r.Group("/v1")
	ch.RegisterRoutes(v1.Group("", auth.RequireBilling(testBillingSecret)))
	admin := v1.Group("/admin", auth.RequireAdmin(testSecret))
	ch.RegisterAdminRoutes(admin)
	plans.NewHandler(catalog).RegisterAdminRoutes(admin)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	client := NewClient(Config{
		APIURL:        ts.URL,
		AdminSecret:   testSecret,
		BillingSecret: testBillingSecret,
		Operator:      "assistant@example.com",
	})
	return &testAPI{handlers: NewHandlers(client), service: svc}
}

func settings(threshold int64) *commission.Settings {
	return &commission.Settings{
		MinPayoutThreshold:     decimal.NewFromInt(threshold),
		PaymentSchedule:        commission.ScheduleMonthly,
		PaymentDay:             "1st",
		MaxHelpersPerRecruiter: commission.UnlimitedHelpers,
		ReferralCodePrefix:     "HLP",
		EnableMultiTier:        true,
		Network: commission.NetworkRules{
			Monthly: commission.Rule{
				Model:             commission.ModelHybrid,
				OnetimeType:       commission.AmountPercentage,
				OnetimeValue:      decimal.NewFromInt(10),
				RecurringType:     commission.AmountPercentage,
				RecurringValue:    decimal.NewFromInt(5),
				RecurringDuration: 12,
			},
			Yearly: commission.Rule{
				Model:        commission.ModelOneTime,
				OnetimeType:  commission.AmountPercentage,
				OnetimeValue: decimal.NewFromInt(15),
			},
		},
		PlanOverrides: map[string]commission.PlanOverride{
			"starter": {Enabled: false},
		},
	}
}

func (a *testAPI) activate(t *testing.T, s *commission.Settings, reason string) {
	t.Helper()
	_, err := a.service.Activate(context.Background(), commission.ActivateRequest{
		Candidate: s, ChangedBy: "ops@example.com", Reason: reason,
	})
	require.NoError(t, err)
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_SendsAdminHeaders(t *testing.T) {
	var gotSecret, gotIdentity string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Admin-Secret")
		gotIdentity = r.Header.Get("X-Admin-Identity")
		_, _ = w.Write([]byte(`{"plans":[]}`))
	}))
	defer ts.Close()

	client := NewClient(Config{APIURL: ts.URL, AdminSecret: "s3cret", Operator: "ops@example.com"})
	_, err := client.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "ops@example.com", gotIdentity)
}

func TestClient_APIErrorWithMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "forbidden",
			"message": "Invalid admin secret",
		})
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL}).ListAudit(context.Background(), 5)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Invalid admin secret")
}

func TestClient_APIErrorNonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL}).ListVersions(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_ConnectionRefused(t *testing.T) {
	_, err := NewClient(Config{APIURL: "http://127.0.0.1:1"}).GetActiveSettings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_FailsFastAfterRepeatedServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"persistence_error","message":"db down"}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIURL: ts.URL})
	for i := 0; i < 5; i++ {
		_, err := c.ListVersions(context.Background(), 0)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	}

	_, err := c.ListVersions(context.Background(), 0)
	assert.ErrorIs(t, err, ErrAPIUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"nothing yet"}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIURL: ts.URL})
	for i := 0; i < 8; i++ {
		_, err := c.GetActiveSettings(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}
}

func TestClient_WrongSecretRejected(t *testing.T) {
	api := newTestAPI(t)
	api.handlers.client.cfg.AdminSecret = "wrong"

	res, err := api.handlers.HandleListPlans(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "403")
}

// ============================================================
// Tool handler tests
// ============================================================

func TestHandleGetActiveSettings_NoneYet(t *testing.T) {
	api := newTestAPI(t)

	res, err := api.handlers.HandleGetActiveSettings(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "No commission settings have been activated yet.", resultText(t, res))
}

func TestHandleGetActiveSettings(t *testing.T) {
	api := newTestAPI(t)
	api.activate(t, settings(500), "launch")

	res, err := api.handlers.HandleGetActiveSettings(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Commission settings v1")
	assert.Contains(t, text, "by ops@example.com")
	assert.Contains(t, text, "monthly: Hybrid: first payment 10%, then 5% for 12 cycle(s)")
	assert.Contains(t, text, "yearly: One-time: first payment 15%")
	assert.Contains(t, text, "starter: disabled")
	assert.Contains(t, text, "Minimum threshold: ₹500.00")
	assert.Contains(t, text, "unlimited")
}

func TestHandleComputeCommission_CatalogPrice(t *testing.T) {
	api := newTestAPI(t)
	api.activate(t, settings(500), "")

	res, err := api.handlers.HandleComputeCommission(context.Background(), makeRequest(map[string]any{
		"plan_id": "growth", "cadence": "monthly", "cycle_index": float64(1),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	text := resultText(t, res)
	assert.Contains(t, text, "Commission: ₹99.90")
	assert.Contains(t, text, "Settings version: v1")
	assert.Contains(t, text, "Rule (network)")
}

func TestHandleComputeCommission_ExplicitAmountAndChain(t *testing.T) {
	api := newTestAPI(t)
	api.activate(t, settings(500), "")

	res, err := api.handlers.HandleComputeCommission(context.Background(), makeRequest(map[string]any{
		"plan_id": "pro", "cadence": "monthly", "cycle_index": float64(2),
		"amount": "100", "chain": "h_direct, h_recruiter",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	text := resultText(t, res)
	assert.Contains(t, text, "Commission: ₹5.00")
	assert.Contains(t, text, "tier 1 h_direct")
	assert.Contains(t, text, "tier 2 h_recruiter")
}

func TestHandleComputeCommission_DisabledPlan(t *testing.T) {
	api := newTestAPI(t)
	api.activate(t, settings(500), "")

	res, err := api.handlers.HandleComputeCommission(context.Background(), makeRequest(map[string]any{
		"plan_id": "starter", "cadence": "monthly", "cycle_index": float64(1),
	}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Commission: ₹0.00")
	assert.Contains(t, text, "override disabled")
}

func TestHandleComputeCommission_BadArguments(t *testing.T) {
	api := newTestAPI(t)

	tests := []map[string]any{
		{"cadence": "monthly", "cycle_index": float64(1)},
		{"plan_id": "pro", "cadence": "weekly", "cycle_index": float64(1)},
		{"plan_id": "pro", "cadence": "monthly", "cycle_index": float64(0)},
		{"plan_id": "pro", "cadence": "monthly", "cycle_index": float64(1), "amount": "lots"},
	}
	for _, args := range tests {
		res, err := api.handlers.HandleComputeCommission(context.Background(), makeRequest(args))
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
	}
}

func TestHandleComputeCommission_NoActiveSettings(t *testing.T) {
	api := newTestAPI(t)

	res, err := api.handlers.HandleComputeCommission(context.Background(), makeRequest(map[string]any{
		"plan_id": "pro", "cadence": "monthly", "cycle_index": float64(1),
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "409")
}

func TestHandleVersionsDiffAndAudit(t *testing.T) {
	api := newTestAPI(t)
	api.activate(t, settings(500), "launch")
	api.activate(t, settings(750), "fewer small payouts")
	ctx := context.Background()

	res, err := api.handlers.HandleListVersions(ctx, makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Found 2 version(s)")
	assert.Contains(t, text, "v2 [active]")

	res, err = api.handlers.HandleDiffVersions(ctx, makeRequest(map[string]any{"from": float64(1), "to": float64(2)}))
	require.NoError(t, err)
	text = resultText(t, res)
	assert.Contains(t, text, "Changes from v1 to v2")
	assert.Contains(t, text, "Payment settings:")
	assert.Contains(t, text, "Minimum payout threshold")
	assert.NotContains(t, text, "Commission rates:")

	res, err = api.handlers.HandleListAudit(ctx, makeRequest(map[string]any{"limit": float64(10)}))
	require.NoError(t, err)
	text = resultText(t, res)
	assert.Contains(t, text, "Found 2 audit record(s)")
	assert.Contains(t, text, "commission_settings.minPayoutThreshold")
	assert.Contains(t, text, "reason: fewer small payouts")
}

func TestHandleDiffVersions_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.activate(t, settings(500), "")

	res, err := api.handlers.HandleDiffVersions(context.Background(), makeRequest(map[string]any{"from": float64(1)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = api.handlers.HandleDiffVersions(context.Background(), makeRequest(map[string]any{"from": float64(1), "to": float64(9)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "404")
}

func TestHandleValidateSettings(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	valid := map[string]any{
		"network": map[string]any{
			"monthly": map[string]any{"model": "onetime", "onetimeType": "percentage", "onetimeValue": "10"},
			"yearly":  map[string]any{"model": "onetime", "onetimeType": "fixed", "onetimeValue": "500"},
		},
		"paymentSchedule":        "monthly",
		"paymentDay":             "last",
		"referralCodePrefix":     "HLP",
		"maxHelpersPerRecruiter": float64(-1),
		"minPayoutThreshold":     "0",
	}
	res, err := api.handlers.HandleValidateSettings(ctx, makeRequest(map[string]any{"settings": valid}))
	require.NoError(t, err)
	assert.Equal(t, "The settings are valid and can be activated.", resultText(t, res))

	valid["referralCodePrefix"] = ""
	valid["minPayoutThreshold"] = "-5"
	res, err = api.handlers.HandleValidateSettings(ctx, makeRequest(map[string]any{"settings": valid}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "invalid (2 error(s))")
	assert.Contains(t, text, "referral code prefix is required")

	res, err = api.handlers.HandleValidateSettings(ctx, makeRequest(map[string]any{"settings": `{"paymentSchedule":"daily"`}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = api.handlers.HandleValidateSettings(ctx, makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleListPlans(t *testing.T) {
	api := newTestAPI(t)

	res, err := api.handlers.HandleListPlans(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Found 3 plan(s)")
	assert.Contains(t, text, "Pro (pro): ₹1999.00/month, ₹19990.00/year")
}

func TestSplitChain(t *testing.T) {
	assert.Nil(t, splitChain(""))
	assert.Equal(t, []string{"a", "b"}, splitChain(" a, ,b ,"))
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080"}, "test")
	require.NotNil(t, s)
}
