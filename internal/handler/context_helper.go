package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scahts-api/internal/middleware"
	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
	"github.com/noah-isme/scahts-api/pkg/response"
)

// actorFromContext writes a 401 and returns false when no caller is attached.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Validation("invalid query parameter", map[string]string{key: "must be a non-negative integer"})
	}
	return v, nil
}

// queryStatuses accepts both ?status=A,B and repeated ?status= parameters.
func queryStatuses(c *gin.Context) []models.LeaveStatus {
	var out []models.LeaveStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, models.LeaveStatus(part))
			}
		}
	}
	return out
}

func bindError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
