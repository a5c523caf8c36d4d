package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-admin-api/internal/middleware"
	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
)

// actorFromContext returns the Actor granted by the route's authorization gate.
func actorFromContext(c *gin.Context) (models.Actor, error) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	actor, ok := value.(models.Actor)
	if !ok {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	return actor, nil
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
