// Package logging configures logrus and provides the request-logging middleware.
package logging

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger.
func Setup(level, format string) {
	if format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// Middleware logs one line per request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":     c.Request.Method,
			"url":        c.Request.URL.String(),
			"status":     c.Writer.Status(),
			"remoteAddr": c.ClientIP(),
			"userAgent":  c.Request.UserAgent(),
			"requestId":  c.GetHeader("X-Request-Id"),
			"latency":    time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		default:
			entry.Info("request handled")
		}
	}
}
