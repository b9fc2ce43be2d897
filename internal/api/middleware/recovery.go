package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery answers a panicking request with a plain text 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		LoggerFromContext(c).Error("panic recovered", slog.Any("panic", recovered))
		c.String(http.StatusInternalServerError, "Server Error")
		c.Abort()
	})
}
