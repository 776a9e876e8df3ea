package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/auth"
	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/session"
)

// Context keys set by RequireSession
const (
	ContextAgentID     = "agent_id"
	ContextPermissions = "permissions"
)

// AdminAuth middleware checks for the admin token, and for a TOTP code when
// totpSecret is set
func AdminAuth(adminToken, totpSecret string, clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Admin-Token")

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Admin token required",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Invalid admin token",
			})
			return
		}

		if totpSecret != "" {
			code := c.GetHeader("X-Admin-TOTP")
			valid, err := auth.ValidateTOTP(totpSecret, code, clk.Now())
			if code == "" || err != nil || !valid {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "forbidden",
					"message": "Invalid TOTP code",
				})
				return
			}
		}

		c.Next()
	}
}

// RequireSession middleware admits requests carrying a live session token
// and exposes the session's agent and permissions on the context
func RequireSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok || !session.ValidateTokenFormat(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Valid session token required",
			})
			return
		}

		result := sessions.ValidateSession(c.Request.Context(), token)
		if !result.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": result.Error,
			})
			return
		}

		c.Set(ContextAgentID, result.AgentID)
		c.Set(ContextPermissions, result.Permissions)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
