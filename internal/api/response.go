package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	msgResumeNotFound = "Resume not found"
	msgServerError    = "Server Error"
	msgUnauthorized   = "unauthorized"
)

// Error writes the JSON error body every handler uses: {"msg": ...}.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"msg": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": msgUnauthorized})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, msgUnauthorized) }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context)               { Error(c, http.StatusInternalServerError, msgServerError) }

// Unavailable reports a feature whose backing service is not configured.
func Unavailable(c *gin.Context, msg string) { Error(c, http.StatusServiceUnavailable, msg) }
