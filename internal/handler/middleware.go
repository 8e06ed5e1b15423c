package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"minimail/internal/service/auth"
	"minimail/pkg/util"
)

const (
	msgTokenRequired = "Unauthorized. Token required."
	msgInvalidToken  = "Invalid or expired token."
)

// AuthMiddleware verifies the bearer token before any mail handler runs and
// stores the session identity in the gin context.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			respondMessage(c, http.StatusUnauthorized, msgTokenRequired)
			c.Abort()
			return
		}

		claims, err := authService.Authenticate(token)
		if err != nil {
			respondMessage(c, http.StatusUnauthorized, msgInvalidToken)
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)

		c.Next()
	}
}
