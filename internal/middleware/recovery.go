package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/swdash/pkg/errors"
	"github.com/charlesng35/swdash/pkg/logger"
	"github.com/charlesng35/swdash/pkg/response"
)

// Recovery turns a handler panic into a generic internal error. The panic
// value is logged, never returned.
func Recovery() gin.HandlerFunc {
	log := logger.WithModule("http")
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error("handler panicked",
				zap.String("method", c.Request.Method),
				zap.String("route", routeOf(c)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			response.Error(c, appErrors.ErrInternal)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unmatched routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, appErrors.ErrRouteNotFound.WithMessage("route %s %s not found", c.Request.Method, c.Request.URL.Path))
}
