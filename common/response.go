package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondError writes err using the error envelope. Unexpected errors are
// logged and answered with a generic message.
func RespondError(c *gin.Context, log *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		ResolveLogger(log).Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": "Server Error"})
		return
	}

	body := gin.H{"success": false, "error": err.Error()}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		body["errors"] = validationErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// RespondData writes the success envelope.
func RespondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// BindJSON decodes the request body into dst, answering 400 itself on failure.
func BindJSON(c *gin.Context, log *slog.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		v := &ValidationError{}
		v.Add("body", "Invalid request body")
		RespondError(c, log, v)
		return false
	}
	return true
}
