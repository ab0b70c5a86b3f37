package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/moodpoints-api/internal/middleware"
	"github.com/noah-isme/moodpoints-api/internal/models"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

// studentFromContext returns the caller's id, rejecting non-student tokens.
func studentFromContext(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return "", appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only students can perform this action")
	}
	return claims.UserID, nil
}

// intQuery parses an optional integer query parameter. Absent means zero.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be an integer")
	}
	return v, nil
}

func withMeta(c *gin.Context) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	return meta
}
