package httpserver

import (
	"context"
	"net/http"
	"strings"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/orderapi"
	"github.com/gin-gonic/gin"
)

type ctxKey string

const actorCtxKey ctxKey = "actor"

// authMiddleware resolves the bearer token to an actor and stores it in the
// request context.
func authMiddleware(tokens tokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, orderapi.ErrorResponse{Code: orderapi.CodeUnauthorized, Error: "missing bearer token"})
			return
		}
		actor, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, orderapi.ErrorResponse{Code: orderapi.CodeUnauthorized, Error: "invalid token"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), actorCtxKey, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	actor, _ := c.Request.Context().Value(actorCtxKey).(domain.Actor)
	return actor
}
