package server

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var corsHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// CORS allows the configured origins; "*" or an empty list allows any origin
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: corsHeaders,
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || lo.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// RequestLogger logs one line per request at a level matching the status
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		entry := logger.WithFields(logrus.Fields{
			"method":      strings.ToUpper(c.Request.Method),
			"path":        path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// RequireToken rejects requests whose ?token= does not match secret.
// An empty secret rejects everything.
func RequireToken(secret string, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		received := c.Query("token")
		if secret == "" || received == "" ||
			subtle.ConstantTimeCompare([]byte(received), []byte(secret)) != 1 {
			respondError(c, logger, errors.SecurityError("unauthorized"))
			return
		}
		c.Next()
	}
}
