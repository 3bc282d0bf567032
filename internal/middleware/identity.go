package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saloncore/booking-core/internal/policy"
)

// Context keys the handlers read caller identity from. The gateway in front
// of this service authenticates the caller (chat bot session or mini-app
// JWT) and forwards identity as trusted headers; this core never verifies
// credentials itself.
const (
	ContextKeyClientID = "client_id"
	ContextKeyStaffID  = "staff_id"
	ContextKeyRole     = "role"
)

// Identity reads caller identity forwarded by the gateway and makes it
// available to handlers via gin's context. A missing X-User-Role defaults
// to RoleClient, the least-privileged caller.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if clientID := c.GetHeader("X-Client-Id"); clientID != "" {
			c.Set(ContextKeyClientID, clientID)
		}
		if staffID := c.GetHeader("X-Staff-Id"); staffID != "" {
			c.Set(ContextKeyStaffID, staffID)
		}

		role := policy.Role(c.GetHeader("X-User-Role"))
		switch role {
		case policy.RoleStaff, policy.RoleAdmin:
			c.Set(ContextKeyRole, role)
		default:
			c.Set(ContextKeyRole, policy.RoleClient)
		}

		c.Next()
	}
}

// RequireClient aborts the request unless a client id was forwarded by the
// gateway, for endpoints that act on behalf of a specific client.
func RequireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyClientID); !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_CLIENT_IDENTITY",
					"message": "X-Client-Id header required",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaffOrAdmin aborts the request unless the caller role is staff or
// admin, for operations that bypass client-facing lock windows.
func RequireStaffOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextKeyRole)
		r, _ := role.(policy.Role)
		if r != policy.RoleStaff && r != policy.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_ROLE",
					"message": "staff or admin role required",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
