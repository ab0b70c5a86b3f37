package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/moodpoints-api/internal/middleware"
	"github.com/noah-isme/moodpoints-api/internal/models"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Engagement *EngagementHandler
	Analytics  *AnalyticsHandler
	Profile    *ProfileHandler
}

// RegisterRoutes mounts the API on an authenticated group.
// submitLimiter, when set, throttles the student write endpoints.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, submitLimiter gin.HandlerFunc) {
	api.GET("/me", h.Profile.Me)
	api.GET("/rewards", h.Engagement.Rewards)

	students := api.Group("/me", middleware.RequireRoles(models.RoleStudent))
	limited := func(next gin.HandlerFunc) []gin.HandlerFunc {
		if submitLimiter == nil {
			return []gin.HandlerFunc{next}
		}
		return []gin.HandlerFunc{submitLimiter, next}
	}
	students.POST("/emotions", limited(h.Engagement.SubmitEmotion)...)
	students.POST("/redemptions", limited(h.Engagement.RedeemReward)...)
	students.GET("/emotions", h.Engagement.Submissions)
	students.GET("/redemptions", h.Engagement.Redemptions)
	students.GET("/cooldown", h.Engagement.Cooldown)

	staff := api.Group("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	classes := staff.Group("/classes/:id")
	classes.GET("/analytics", h.Analytics.ClassAnalytics)
	classes.GET("/analytics/trends.csv", h.Analytics.TrendsCSV)
	classes.GET("/submission-status", h.Analytics.SubmissionStatus)
	classes.GET("/insight-payload", h.Analytics.InsightPayload)
	staff.GET("/analytics/system", middleware.RequireRoles(models.RoleAdmin), h.Analytics.System)
}
