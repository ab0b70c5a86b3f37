package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/moodpoints-api/internal/middleware"
	"github.com/noah-isme/moodpoints-api/internal/service"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
	"github.com/noah-isme/moodpoints-api/pkg/response"
)

// AnalyticsHandler exposes class emotion analytics to teachers and admins.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// authorize resolves the class id path parameter and checks the caller may read it.
func (h *AnalyticsHandler) authorize(c *gin.Context) (string, bool) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return "", false
	}
	classID := c.Param("id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class id is required"))
		return "", false
	}
	if err := h.analytics.AuthorizeClass(c.Request.Context(), claimsFromContext(c), classID); err != nil {
		response.Error(c, err)
		return "", false
	}
	return classID, true
}

// ClassAnalytics godoc
// @Summary Class emotion analytics
// @Description Distribution, ranking and daily trends over the trailing window
// @Tags Analytics
// @Produce json
// @Param id path string true "Class ID"
// @Param window_days query int false "Window size in days"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/analytics [get]
func (h *AnalyticsHandler) ClassAnalytics(c *gin.Context) {
	classID, ok := h.authorize(c)
	if !ok {
		return
	}
	window, err := intQuery(c, "window_days")
	if err != nil {
		response.Error(c, err)
		return
	}
	snapshot, cacheHit, err := h.analytics.ClassAnalytics(c.Request.Context(), classID, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, snapshot, nil, withMeta(c))
}

// SubmissionStatus godoc
// @Summary Who has checked in today
// @Tags Analytics
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/submission-status [get]
func (h *AnalyticsHandler) SubmissionStatus(c *gin.Context) {
	classID, ok := h.authorize(c)
	if !ok {
		return
	}
	status, err := h.analytics.SubmissionStatus(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil, withMeta(c))
}

// InsightPayload godoc
// @Summary Aggregated insight input for text generation
// @Tags Analytics
// @Produce json
// @Param id path string true "Class ID"
// @Param window_days query int false "Window size in days"
// @Param locale query string false "Output locale"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/insight-payload [get]
func (h *AnalyticsHandler) InsightPayload(c *gin.Context) {
	classID, ok := h.authorize(c)
	if !ok {
		return
	}
	window, err := intQuery(c, "window_days")
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.analytics.InsightPayload(c.Request.Context(), classID, window, c.Query("locale"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload, nil, withMeta(c))
}

// TrendsCSV godoc
// @Summary Download daily trends as CSV
// @Tags Analytics
// @Produce text/csv
// @Param id path string true "Class ID"
// @Param window_days query int false "Window size in days"
// @Success 200 {file} file
// @Router /classes/{id}/analytics/trends.csv [get]
func (h *AnalyticsHandler) TrendsCSV(c *gin.Context) {
	classID, ok := h.authorize(c)
	if !ok {
		return
	}
	window, err := intQuery(c, "window_days")
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.analytics.TrendsCSV(c.Request.Context(), classID, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, fmt.Sprintf("%s-emotion-trends.csv", classID), h.analytics.ExportContentType(), payload)
}

// System godoc
// @Summary System instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}
