package commission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-admin/commissions/internal/auth"
)

const testSecret = "test-admin-secret"

func setupRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := NewHandler(NewService(store, newFakePlans()), 100)
	h.RegisterRoutes(r.Group("/v1"))
	admin := r.Group("/v1/admin")
	admin.Use(auth.RequireAdmin(testSecret))
	h.RegisterAdminRoutes(admin)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAdminSecret, testSecret)
	req.Header.Set(auth.HeaderAdminIdentity, "ops@example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHandler_ActivateAndReadBack(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	w := doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{
		Settings: validSettings(),
		Reason:   "launch",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Settings Settings      `json:"settings"`
		Summary  ChangeSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 1, created.Settings.Version)
	assert.Equal(t, "ops@example.com", created.Settings.CreatedBy)
	assert.True(t, created.Settings.Network.Monthly.OnetimeValue.Equal(dec("10")))

	w = doJSON(r, "GET", "/v1/admin/commission/settings/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active struct {
		Settings Settings `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	assert.Equal(t, 1, active.Settings.Version)
	assert.Equal(t, ModelHybrid, active.Settings.Network.Monthly.Model)
}

func TestHandler_ActivateValidationFailure(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	s := validSettings()
	s.ReferralCodePrefix = ""
	s.MinPayoutThreshold = dec("-5")
	w := doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{Settings: s})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Len(t, body["errors"], 2)

	w = doJSON(r, "GET", "/v1/admin/commission/settings/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ActivateRejectsUnknownEnum(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	raw := `{"settings": {"network": {"monthly": {"model": "tiered"}}}}`
	req := httptest.NewRequest("POST", "/v1/admin/commission/settings", bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAdminSecret, testSecret)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RequiresAdminSecret(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	req := httptest.NewRequest("GET", "/v1/admin/commission/settings/active", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ValidateEndpoint(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	s := validSettings()
	s.MaxHelpersPerRecruiter = -4
	w := doJSON(r, "POST", "/v1/admin/commission/settings/validate", s)
	require.Equal(t, http.StatusOK, w.Code)

	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 1)
}

func TestHandler_VersionsDiffAndAudit(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	require.Equal(t, http.StatusCreated,
		doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{Settings: validSettings()}).Code)
	next := validSettings()
	next.PaymentSchedule = ScheduleWeekly
	next.PaymentDay = "friday"
	require.Equal(t, http.StatusCreated,
		doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{Settings: next, Reason: "weekly payouts"}).Code)

	w := doJSON(r, "GET", "/v1/admin/commission/settings/versions?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = doJSON(r, "GET", "/v1/admin/commission/settings/versions/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, "GET", "/v1/admin/commission/settings/versions/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(r, "GET", "/v1/admin/commission/settings/versions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, "GET", "/v1/admin/commission/settings/diff?from=1&to=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var diff struct {
		Summary ChangeSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	assert.Len(t, diff.Summary.PaymentSettings, 2)

	w = doJSON(r, "GET", "/v1/admin/commission/settings/diff?from=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, "GET", "/v1/admin/commission/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var audit struct {
		Records []AuditRecord `json:"records"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audit))
	assert.Equal(t, 3, audit.Count)
	assert.Equal(t, "weekly payouts", audit.Records[0].Reason)
}

func TestHandler_Conflict(t *testing.T) {
	r := setupRouter(&racingStore{MemoryStore: NewMemoryStore()})

	w := doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{Settings: validSettings()})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "version_conflict", decode(t, w)["error"])
}

func TestHandler_PersistenceError(t *testing.T) {
	r := setupRouter(&failingStore{MemoryStore: NewMemoryStore(), err: errors.New("disk full")})

	w := doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{Settings: validSettings()})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "persistence_error", body["error"])
	assert.NotContains(t, body["message"], "disk full")
}

func TestHandler_Compute(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, newFakePlans())
	_, err := svc.Activate(context.Background(), ActivateRequest{Candidate: validSettings()})
	require.NoError(t, err)
	r := setupRouter(store)

	w := doJSON(r, "POST", "/v1/commissions/compute", map[string]any{
		"planId":     "starter",
		"cadence":    "monthly",
		"cycleIndex": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Commission decimal.Decimal `json:"commission"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assertAmount(t, "49.9", out.Commission)

	w = doJSON(r, "POST", "/v1/commissions/compute", map[string]any{
		"planId":     "pro",
		"cadence":    "yearly",
		"cycleIndex": 1,
		"amount":     "1000",
		"chain":      []string{"helper-a"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assertAmount(t, "150", out.Commission)
}

func TestHandler_ComputeBadRequests(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	tests := []map[string]any{
		{"cadence": "monthly", "cycleIndex": 1},
		{"planId": "pro", "cadence": "weekly", "cycleIndex": 1},
		{"planId": "pro", "cadence": "monthly", "cycleIndex": 0},
		{"planId": "pro", "cadence": "monthly", "cycleIndex": 1, "amount": "-5"},
		{"planId": "Pro Plan", "cadence": "monthly", "cycleIndex": 1},
		{"planId": "pro", "cadence": "monthly", "cycleIndex": 1, "chain": make([]string, 51)},
	}
	for _, body := range tests {
		w := doJSON(r, "POST", "/v1/commissions/compute", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}
}

func TestHandler_ComputeExplicitZeroAmount(t *testing.T) {
	store := NewMemoryStore()
	r := setupRouter(store)
	zero := map[string]any{"planId": "pro", "cadence": "monthly", "cycleIndex": 1, "amount": 0}

	w := doJSON(r, "POST", "/v1/commissions/compute", zero)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "configuration_error", decode(t, w)["error"])

	w = doJSON(r, "POST", "/v1/admin/commission/settings", ActivateSettingsRequest{Settings: validSettings(), Reason: "launch"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(r, "POST", "/v1/commissions/compute", zero)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out Computation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 1, out.SettingsVersion)
	assertAmount(t, "0", out.Event.Amount)
	assertAmount(t, "0", out.Commission)
}

func TestHandler_ComputeNegativeAmount(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	w := doJSON(r, "POST", "/v1/commissions/compute", map[string]any{
		"planId": "pro", "cadence": "monthly", "cycleIndex": 1, "amount": "-0.01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decode(t, w)["error"])
}

func TestHandler_ComputeWithoutActiveSettings(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	w := doJSON(r, "POST", "/v1/commissions/compute", map[string]any{
		"planId": "pro", "cadence": "monthly", "cycleIndex": 1, "amount": 100,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "configuration_error", decode(t, w)["error"])
}
