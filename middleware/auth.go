package middleware

import (
	"net/http"
	"strings"

	"schoolfee/models"
	"schoolfee/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthMiddleware struct {
	jwtService *utils.JWTService
}

func NewAuthMiddleware(jwtService *utils.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// RequireAuth validates the bearer token and scopes the request to the
// token's organization.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			abortUnauthorized(c, "Authentication token required", "AUTH_TOKEN_REQUIRED")
			return
		}

		claims, err := am.jwtService.ValidateToken(token)
		if err != nil {
			logrus.Warnf("Invalid token: %v", err)
			abortUnauthorized(c, "Invalid authentication token", "AUTH_TOKEN_INVALID")
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("organizationID", claims.OrganizationID)
		c.Set("userRole", claims.Role)

		c.Next()
	})
}

// RequireRole validates user has specific role
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		role := c.GetString("userRole")
		if role == "" {
			abortUnauthorized(c, "User role not found in context", "AUTH_ROLE_MISSING")
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, models.NewErrorResponse(
			"FORBIDDEN",
			"Insufficient permissions",
			"AUTH_INSUFFICIENT_ROLE",
			c.GetString("request_id"),
		))
		c.Abort()
	})
}

func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.JSON(http.StatusUnauthorized, models.NewErrorResponse(
		"UNAUTHORIZED",
		message,
		code,
		c.GetString("request_id"),
	))
	c.Abort()
}
