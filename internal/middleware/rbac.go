package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/internal/service"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
	"github.com/noah-isme/scahts-api/pkg/response"
)

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "your role may not access this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAction admits the roles the policy table grants action to.
func RequireAction(action service.Action) gin.HandlerFunc {
	return RequireRoles(service.RolesFor(action)...)
}
