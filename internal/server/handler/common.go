// Package handler contains the Gin HTTP handlers for the reward service.
// Binary request and response bodies use application/octet-stream; everything
// else is JSON.
package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/apperr"
	"go.uber.org/zap"
)

const contentTypeBinary = "application/octet-stream"

// respondError maps an error through the application error taxonomy. Internal
// failures are logged with full detail and surfaced with a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// readBody consumes the raw request body. Returns false after writing a 400
// response if the body cannot be read.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return nil, false
	}
	return body, true
}
