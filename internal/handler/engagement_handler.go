package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/service"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
	"github.com/noah-isme/moodpoints-api/pkg/response"
)

// EngagementHandler exposes the student check-in and reward endpoints.
type EngagementHandler struct {
	engagement *service.EngagementService
}

// NewEngagementHandler constructs the handler.
func NewEngagementHandler(engagement *service.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

type submitEmotionPayload struct {
	Emotion string  `json:"emotion"`
	Note    *string `json:"note"`
}

// SubmitEmotion godoc
// @Summary Submit today's emotion
// @Description Records a check-in and credits points unless the cooldown is active
// @Tags Engagement
// @Accept json
// @Produce json
// @Param payload body submitEmotionPayload true "Emotion payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /me/emotions [post]
func (h *EngagementHandler) SubmitEmotion(c *gin.Context) {
	if h.engagement == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload submitEmotionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid emotion payload"))
		return
	}

	result, err := h.engagement.SubmitEmotion(c.Request.Context(), dto.SubmitEmotionRequest{
		StudentID: studentID,
		Emotion:   payload.Emotion,
		Note:      payload.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Accepted {
		response.Error(c, appErrors.WithDetails(appErrors.ErrCooldownActive, map[string]interface{}{
			"hours_remaining":          result.HoursRemaining,
			"balance":                  result.Balance,
			response.RetryAfterDetail: result.HoursRemaining * 3600,
		}))
		return
	}
	response.JSON(c, http.StatusCreated, result, nil, withMeta(c))
}

// RedeemReward godoc
// @Summary Redeem a reward
// @Tags Engagement
// @Accept json
// @Produce json
// @Param payload body dto.RedeemRewardRequest true "Redemption payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /me/redemptions [post]
func (h *EngagementHandler) RedeemReward(c *gin.Context) {
	if h.engagement == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RedeemRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid redemption payload"))
		return
	}

	result, err := h.engagement.RedeemReward(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	switch result.Outcome {
	case dto.RedeemOutcomeRedeemed:
		response.JSON(c, http.StatusCreated, result, nil, withMeta(c))
	case dto.RedeemOutcomeInsufficientBalance:
		response.Error(c, appErrors.WithDetails(appErrors.ErrInsufficientBalance, map[string]interface{}{
			"remaining_balance": result.RemainingBalance,
			"cost":              result.Cost,
		}))
	default:
		response.Error(c, appErrors.WithDetails(appErrors.ErrRewardNotFound, map[string]interface{}{
			"reward_id":         req.RewardID,
			"remaining_balance": result.RemainingBalance,
		}))
	}
}

// Cooldown godoc
// @Summary Current submission cooldown
// @Tags Engagement
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/cooldown [get]
func (h *EngagementHandler) Cooldown(c *gin.Context) {
	if h.engagement == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.engagement.Cooldown(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Submissions godoc
// @Summary List own submissions
// @Tags Engagement
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /me/emotions [get]
func (h *EngagementHandler) Submissions(c *gin.Context) {
	if h.engagement == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	subs, err := h.engagement.Submissions(c.Request.Context(), studentID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// Redemptions godoc
// @Summary List own redemptions
// @Tags Engagement
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /me/redemptions [get]
func (h *EngagementHandler) Redemptions(c *gin.Context) {
	if h.engagement == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := studentFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	redemptions, err := h.engagement.Redemptions(c.Request.Context(), studentID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, redemptions, nil)
}

// Rewards godoc
// @Summary List the active reward catalog
// @Tags Engagement
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rewards [get]
func (h *EngagementHandler) Rewards(c *gin.Context) {
	if h.engagement == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	rewards, err := h.engagement.Rewards(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rewards, nil)
}
