package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roomcast/auth"
	"roomcast/domain"
	"roomcast/errors"
)

const principalKey = "principal"

// requirePrincipal authenticates the request from its Authorization header
// and stashes the resolved principal in the gin context.
func requirePrincipal(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authenticator.Authenticate(c.Request.Context(), auth.HeaderCredentials{Request: c.Request})
		if err != nil {
			code := errors.ToWireCode(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  code,
				"error": "authentication required",
			})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	return c.MustGet(principalKey).(domain.Principal)
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}

// replyError maps a service error onto the uniform HTTP error body.
func replyError(c *gin.Context, err error) {
	code := errors.ToWireCode(err)
	body := gin.H{"code": code, "error": err.Error()}
	if code == errors.CodeInternal {
		body["error"] = "internal error"
	}
	c.JSON(errors.HTTPStatus(code), body)
}
