// Package auth guards the admin and billing APIs with shared secrets and
// exposes the operator identity to handlers.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storefront-admin/commissions/internal/logging"
)

const (
	// HeaderAdminSecret carries the shared admin secret.
	HeaderAdminSecret = "X-Admin-Secret"
	// HeaderBillingSecret carries the secret billing presents on compute calls.
	HeaderBillingSecret = "X-Billing-Secret"
	// HeaderAdminIdentity carries the operator's e-mail, set by the admin UI.
	HeaderAdminIdentity = "X-Admin-Identity"

	// ContextKeyIdentity is the gin context key for the operator identity.
	ContextKeyIdentity = "adminIdentity"

	// AnonymousOperator is recorded when no identity header is sent.
	AnonymousOperator = "admin"
)

// RequireAdmin rejects requests that do not present secret in X-Admin-Secret.
// An empty secret disables the check; config validation refuses that outside
// development.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checkSecret(c, HeaderAdminSecret, secret, "Admin") {
			return
		}

		identity := strings.TrimSpace(c.GetHeader(HeaderAdminIdentity))
		if identity == "" {
			identity = AnonymousOperator
		}
		c.Set(ContextKeyIdentity, identity)
		c.Request = c.Request.WithContext(logging.WithOperator(c.Request.Context(), identity))

		c.Next()
	}
}

// RequireBilling rejects compute calls that do not present secret in
// X-Billing-Secret. An empty secret disables the check.
func RequireBilling(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checkSecret(c, HeaderBillingSecret, secret, "Billing") {
			return
		}
		c.Next()
	}
}

// checkSecret aborts the request and returns false when header does not
// carry secret.
func checkSecret(c *gin.Context, header, secret, who string) bool {
	if secret == "" {
		return true
	}
	provided := c.GetHeader(header)
	if provided == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": who + " secret required. Include the " + header + " header.",
		})
		return false
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Invalid " + strings.ToLower(who) + " secret.",
		})
		return false
	}
	return true
}

// Identity returns the operator identity set by RequireAdmin.
func Identity(c *gin.Context) string {
	if id := c.GetString(ContextKeyIdentity); id != "" {
		return id
	}
	return AnonymousOperator
}
