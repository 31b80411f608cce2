package commission

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/storefront-admin/commissions/internal/auth"
	"github.com/storefront-admin/commissions/internal/logging"
	"github.com/storefront-admin/commissions/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler provides HTTP endpoints for commission settings and computation.
type Handler struct {
	service    *Service
	auditLimit int
}

// NewHandler creates a new commission handler. auditLimit caps the page
// size of the audit endpoint; zero means the default.
func NewHandler(service *Service, auditLimit int) *Handler {
	if auditLimit <= 0 {
		auditLimit = defaultListLimit
	}
	return &Handler{service: service, auditLimit: auditLimit}
}

// RegisterRoutes sets up the billing-facing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/commissions/compute", h.Compute)
}

// RegisterAdminRoutes sets up the operator routes. The group must already
// require admin authentication.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/commission/settings/validate", h.ValidateSettings)
	r.POST("/commission/settings", h.ActivateSettings)
	r.GET("/commission/settings/active", h.GetActiveSettings)
	r.GET("/commission/settings/versions", h.ListVersions)
	r.GET("/commission/settings/versions/:version", h.GetVersion)
	r.GET("/commission/settings/diff", h.DiffVersions)
	r.GET("/commission/audit", h.ListAudit)
}

// ActivateSettingsRequest is the body of POST /v1/admin/commission/settings.
type ActivateSettingsRequest struct {
	Settings *Settings `json:"settings" binding:"required"`
	Reason   string    `json:"reason"`
}

// ValidateSettings handles POST /v1/admin/commission/settings/validate
func (h *Handler) ValidateSettings(c *gin.Context) {
	var s Settings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	res, err := h.service.ValidateCandidate(c.Request.Context(), &s)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ActivateSettings handles POST /v1/admin/commission/settings
func (h *Handler) ActivateSettings(c *gin.Context) {
	var req ActivateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	act, err := h.service.Activate(c.Request.Context(), ActivateRequest{
		Candidate: req.Settings,
		ChangedBy: auth.Identity(c),
		Reason:    validation.SanitizeString(req.Reason, validation.MaxReasonLength),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"settings": act.Settings,
		"summary":  act.Summary,
		"messages": act.Summary.Messages(),
	})
}

// GetActiveSettings handles GET /v1/admin/commission/settings/active
func (h *Handler) GetActiveSettings(c *gin.Context) {
	s, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No commission settings have been activated yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

// ListVersions handles GET /v1/admin/commission/settings/versions
func (h *Handler) ListVersions(c *gin.Context) {
	versions, err := h.service.ListVersions(c.Request.Context(), queryLimit(c, defaultListLimit))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if versions == nil {
		versions = []*Settings{}
	}
	c.JSON(http.StatusOK, gin.H{
		"versions": versions,
		"count":    len(versions),
	})
}

// GetVersion handles GET /v1/admin/commission/settings/versions/:version
func (h *Handler) GetVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_version",
			"message": "version must be a positive integer",
		})
		return
	}

	s, err := h.service.GetVersion(c.Request.Context(), version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

// DiffVersions handles GET /v1/admin/commission/settings/diff?from=&to=
func (h *Handler) DiffVersions(c *gin.Context) {
	from, errFrom := strconv.Atoi(c.Query("from"))
	to, errTo := strconv.Atoi(c.Query("to"))
	if errFrom != nil || errTo != nil || from < 1 || to < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_version",
			"message": "from and to must be positive integers",
		})
		return
	}

	summary, err := h.service.DiffVersions(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":     from,
		"to":       to,
		"summary":  summary,
		"messages": summary.Messages(),
	})
}

// ListAudit handles GET /v1/admin/commission/audit
func (h *Handler) ListAudit(c *gin.Context) {
	limit := queryLimit(c, h.auditLimit)
	if limit > h.auditLimit {
		limit = h.auditLimit
	}

	records, err := h.service.ListAudit(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []*AuditRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// ComputeRequest is the body of POST /v1/commissions/compute. Amount is
// optional; when omitted the plan's catalog price is used.
type ComputeRequest struct {
	PlanID     string           `json:"planId" binding:"required"`
	Cadence    Cadence          `json:"cadence" binding:"required"`
	CycleIndex int              `json:"cycleIndex" binding:"required,min=1"`
	Amount     *decimal.Decimal `json:"amount"`
	Chain      []string         `json:"chain"`
}

// Compute handles POST /v1/commissions/compute
func (h *Handler) Compute(c *gin.Context) {
	var req ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if !validation.IsValidPlanID(req.PlanID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_plan_id",
			"message": "planId must be a lowercase slug",
		})
		return
	}
	if len(req.Chain) > validation.MaxChainLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_chain",
			"message": "chain is too long",
		})
		return
	}

	ev := PaymentEvent{PlanID: req.PlanID, Cadence: req.Cadence, CycleIndex: req.CycleIndex}
	switch {
	case req.Amount == nil:
		ev.UseCatalogPrice = true
	case req.Amount.IsNegative():
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "amount must not be negative",
		})
		return
	default:
		ev.Amount = *req.Amount
	}

	out, err := h.service.Compute(c.Request.Context(), ev, req.Chain)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		valErr  *ValidationError
		confErr *ConflictError
		cfgErr  *ConfigurationError
		perErr  *PersistenceError
	)
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": "Commission settings are invalid",
			"errors":  valErr.Errors,
		})
	case errors.As(err, &confErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "version_conflict",
			"message": "Settings were changed by someone else. Reload and try again.",
		})
	case errors.Is(err, ErrVersionNotFound), errors.Is(err, ErrUnknownPlan):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.As(err, &cfgErr):
		logging.L(c.Request.Context()).Error("commission configuration error", "error", err)
		c.JSON(http.StatusConflict, gin.H{
			"error":   "configuration_error",
			"message": err.Error(),
		})
	case errors.As(err, &perErr):
		logging.L(c.Request.Context()).Error("commission persistence error", "op", perErr.Op, "error", perErr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "persistence_error",
			"message": "Failed to save commission settings",
		})
	default:
		logging.L(c.Request.Context()).Error("commission request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

func queryLimit(c *gin.Context, def int) int {
	limit := def
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
