package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/claimaudit/internal/observability/context"
	"github.com/smallbiznis/claimaudit/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	// HeaderUserID carries the caller identity set by the upstream gateway.
	HeaderUserID     = "X-User-Id"
	contextUserIDKey = "user_id"
)

// ActorContext copies the gateway-supplied caller onto the request context.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID != "" {
			c.Set(contextUserIDKey, userID)
			ctx := obscontext.WithActor(c.Request.Context(), "user", userID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// ActorRequired rejects requests without a caller identity.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUserID(c) == "" {
			logger.FromContext(c.Request.Context()).Debug("missing caller identity", zap.String("path", c.Request.URL.Path))
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(contextUserIDKey))
}
