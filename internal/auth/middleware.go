package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

const identityKey = "identity"

// RequireAuth verifies the Authorization bearer token and stores the
// Identity on the gin context.
func RequireAuth(p Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abort(c, errors.Wrap(apperr.ErrUnauthorized, "missing bearer token"))
			return
		}
		id, err := p.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			log.WithError(err).Debug("token rejected")
			abort(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok {
			abort(c, errors.Wrap(apperr.ErrUnauthorized, "missing identity"))
			return
		}
		if !id.IsAdmin() {
			abort(c, errors.Wrap(apperr.ErrForbidden, "admin only"))
			return
		}
		c.Next()
	}
}

// FromContext returns the identity set by RequireAuth.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func abort(c *gin.Context, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindServer {
		// verification failures that are not classified are still auth failures
		e = apperr.ErrUnauthorized
		err = errors.Wrap(e, err.Error())
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(e.Kind), gin.H{
		"success": false,
		"error":   e.Code,
		"message": apperr.PublicMessage(err),
	})
}
