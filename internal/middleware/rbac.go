package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
	"github.com/noah-isme/attendance-admin-api/pkg/response"
)

// ContextActorKey stores the models.Actor granted by an authorization gate.
const ContextActorKey = "actor"

// RequireSuperuser admits only superusers.
func RequireSuperuser() gin.HandlerFunc {
	return gate(func(claims *models.JWTClaims) bool {
		return claims.IsSuperuser
	}, "superuser privileges required")
}

// RequireStaff admits staff members and superusers.
func RequireStaff() gin.HandlerFunc {
	return gate(func(claims *models.JWTClaims) bool {
		return claims.IsStaff || claims.IsSuperuser
	}, "staff privileges required")
}

// gate converts verified claims into an Actor when allow passes.
func gate(allow func(*models.JWTClaims) bool, denied string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !allow(claims) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, denied))
			c.Abort()
			return
		}

		c.Set(ContextActorKey, models.Actor{
			UserID:      claims.UserID,
			Username:    claims.Username,
			IsStaff:     claims.IsStaff,
			IsSuperuser: claims.IsSuperuser,
		})
		c.Next()
	}
}
