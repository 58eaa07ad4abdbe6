package api

import (
	"net/http"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/auth"
	"UD_referral_program/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type referralRoutes struct {
	rs service.ReferralServiceI
	ss service.SummaryServiceI
}

func NewReferralRoutes(handler *gin.RouterGroup, rs service.ReferralServiceI, ss service.SummaryServiceI, a *auth.TelegramAuth) {
	r := &referralRoutes{rs: rs, ss: ss}
	h := handler.Group("/referrals")
	{
		h.POST("/click", r.RecordClick)
	}

	private := h.Group("/")
	private.Use(a.TelegramAuthMiddleware())
	{
		private.GET("/code", r.GetCode)
		private.POST("/attach", r.AttachReferral)
		private.POST("/complete", r.CompleteReferral)
		private.GET("/summary", r.GetSummary)
	}
}

type CodeRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

func (r *referralRoutes) RecordClick(c *gin.Context) {
	log := logger.Logger()

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Info("failed to bind click request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := r.rs.RecordClick(c.Request.Context(), req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err, "failed to record click")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

type CodeResponse struct {
	Code      string    `json:"code"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *referralRoutes) GetCode(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	rc, err := r.rs.GetOrCreateCode(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to get referral code")
		return
	}

	c.JSON(http.StatusOK, CodeResponse{
		Code:      rc.Code,
		Link:      r.rs.ReferralLink(rc.Code),
		CreatedAt: rc.CreatedAt,
	})
}

type ReferralResponse struct {
	ReferrerUserID int64      `json:"referrer_user_id"`
	Status         string     `json:"status"`
	Reason         *string    `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
}

func (r *referralRoutes) AttachReferral(c *gin.Context) {
	log := logger.Logger()

	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Info("failed to bind attach request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ref, err := r.rs.AttachReferral(c.Request.Context(), userID, req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err, "failed to attach referral")
		return
	}

	c.JSON(http.StatusOK, ReferralResponse{
		ReferrerUserID: ref.ReferrerUserID,
		Status:         string(ref.Status),
		Reason:         ref.Reason,
		CreatedAt:      ref.CreatedAt,
		VerifiedAt:     ref.VerifiedAt,
	})
}

type OutcomeResponse struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

func (r *referralRoutes) CompleteReferral(c *gin.Context) {
	log := logger.Logger()

	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Info("failed to bind complete request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	outcome, err := r.rs.CompleteReferral(c.Request.Context(), service.CompleteReferralInput{
		RefereeUserID: userID,
		Code:          req.Code,
		IP:            c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, err, "failed to complete referral")
		return
	}

	c.JSON(http.StatusOK, OutcomeResponse{
		Status: string(outcome.Status),
		Reason: outcome.Reason,
	})
}

type NextTierResponse struct {
	Threshold   int    `json:"threshold"`
	Remaining   int    `json:"remaining"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
}

type SummaryResponse struct {
	Clicks         int               `json:"clicks"`
	VerifiedCount  int               `json:"verified_count"`
	EarnedCents    int64             `json:"earned_cents"`
	ThisWeekPoints int               `json:"this_week_points"`
	NextTier       *NextTierResponse `json:"next_tier"`
	ReferralCode   string            `json:"referral_code"`
	ReferralLink   string            `json:"referral_link"`
}

func toSummaryResponse(s *model.Summary) SummaryResponse {
	out := SummaryResponse{
		Clicks:         s.Clicks,
		VerifiedCount:  s.VerifiedCount,
		EarnedCents:    s.EarnedCents,
		ThisWeekPoints: s.ThisWeekPoints,
		ReferralCode:   s.ReferralCode,
		ReferralLink:   s.ReferralLink,
	}
	if s.NextTier != nil {
		out.NextTier = &NextTierResponse{
			Threshold:   s.NextTier.Threshold,
			Remaining:   s.NextTier.Remaining,
			Type:        string(s.NextTier.Type),
			AmountCents: s.NextTier.AmountCents,
			Description: s.NextTier.Description,
		}
	}
	return out
}

func (r *referralRoutes) GetSummary(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	summary, err := r.ss.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to get summary")
		return
	}

	c.JSON(http.StatusOK, toSummaryResponse(summary))
}
