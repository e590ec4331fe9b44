package middleware

import (
	"net/http"
	"strings"

	"campus-taskhub/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// JWTAuth validates the bearer token and stores the authenticated user's
// ID and claims on the request context
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		c.Set("claims", claims)
		c.Set("userID", claims.UserID)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user ID set by JWTAuth
func CurrentUserID(c *gin.Context) string {
	return c.GetString("userID")
}
