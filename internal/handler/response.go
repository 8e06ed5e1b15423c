package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"minimail/pkg/logger"
)

const msgInternal = "Internal server error."

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// respondInternal hides err from the client and logs it with the trace id.
func respondInternal(c *gin.Context, log *zap.Logger, what string, err error) {
	logger.WithTrace(c.Request.Context(), log).Error(what, zap.Error(err))
	respondMessage(c, http.StatusInternalServerError, msgInternal)
}

// currentEmail returns the identity stored by the auth middleware.
func currentEmail(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok && email != ""
}

const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "email"
)
