package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/moodpoints-api/internal/service"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
	"github.com/noah-isme/moodpoints-api/pkg/response"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler constructs the profile handler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me godoc
// @Summary Current user profile
// @Description Student, teacher or admin projection depending on the token role
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	if h.profiles == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	profile, err := h.profiles.Profile(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
