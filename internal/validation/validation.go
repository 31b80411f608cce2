// Package validation provides request validation helpers for the admin API.
package validation

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxReasonLength bounds the free-text reason stored with audit records.
const MaxReasonLength = 500

// MaxChainLength bounds the recruiting chain accepted by compute.
const MaxChainLength = 50

var planIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidPlanID reports whether id looks like a catalog plan slug.
func IsValidPlanID(id string) bool {
	return planIDRegex.MatchString(id)
}

// SanitizeString trims, drops control characters and limits length in runes.
func SanitizeString(s string, maxLen int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen])
	}
	return s
}

// PlanIDParamMiddleware rejects malformed :planId URL parameters early.
func PlanIDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("planId"); id != "" && !IsValidPlanID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_plan_id",
				"message": "planId must be a lowercase slug (a-z, 0-9, '-', '_')",
			})
			return
		}
		c.Next()
	}
}
