package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/sirupsen/logrus"
)

// ErrorBody is the JSON shape of every failed request
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusFor maps an error class to its HTTP status
func StatusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeNotFound, errors.ErrorTypeConflict:
		return http.StatusBadRequest
	case errors.ErrorTypeSecurity:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	status := StatusFor(err)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"status":     status,
		"error_type": errors.GetType(err).String(),
		"severity":   errors.GetSeverity(err).String(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		if e, ok := err.(*errors.Error); ok {
			logger.Debug(e.DetailedString())
		}
	} else {
		entry.Warn("request rejected")
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}
