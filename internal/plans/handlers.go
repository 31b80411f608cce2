package plans

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the plan catalog to the admin UI.
type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterAdminRoutes sets up admin-only plan routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.ListPlans)
	r.GET("/plans/:planId", h.GetPlan)
}

// ListPlans handles GET /v1/admin/plans
func (h *Handler) ListPlans(c *gin.Context) {
	all, err := h.catalog.ListPlans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if all == nil {
		all = []*Plan{}
	}
	c.JSON(http.StatusOK, gin.H{
		"plans": all,
		"count": len(all),
	})
}

// GetPlan handles GET /v1/admin/plans/:planId
func (h *Handler) GetPlan(c *gin.Context) {
	plan, err := h.catalog.GetPlan(c.Request.Context(), c.Param("planId"))
	if errors.Is(err, ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Plan not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}
