package api

import (
	"net/http"
	"time"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/auth"
	"UD_referral_program/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type rewardRoutes struct {
	rs service.RewardServiceI
}

func NewRewardRoutes(handler *gin.RouterGroup, rs service.RewardServiceI, a *auth.TelegramAuth) {
	r := &rewardRoutes{rs: rs}
	h := handler.Group("/rewards")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.ListRewards)
		h.POST("/:reward_id/claim", r.ClaimReward)
	}
}

type RewardResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Tier        int       `json:"tier,omitempty"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRewardResponse(rw *model.Reward) RewardResponse {
	return RewardResponse{
		ID:          rw.ID,
		Type:        string(rw.Type),
		AmountCents: rw.AmountCents,
		Tier:        rw.Tier,
		Source:      string(rw.Source),
		Status:      string(rw.Status),
		Description: rw.Description,
		CreatedAt:   rw.CreatedAt,
		UpdatedAt:   rw.UpdatedAt,
	}
}

func (r *rewardRoutes) ListRewards(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	rewards, err := r.rs.ListRewards(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to list rewards")
		return
	}

	out := make([]RewardResponse, len(rewards))
	for i, rw := range rewards {
		out[i] = toRewardResponse(rw)
	}

	c.JSON(http.StatusOK, out)
}

type ClaimResponse struct {
	ClaimID        uuid.UUID      `json:"claim_id"`
	IdempotencyKey string         `json:"idempotency_key"`
	Status         string         `json:"status"`
	ClaimedAt      time.Time      `json:"claimed_at"`
	Replayed       bool           `json:"replayed"`
	Reward         RewardResponse `json:"reward"`
}

func (r *rewardRoutes) ClaimReward(c *gin.Context) {
	log := logger.Logger()

	userID, ok := callerID(c)
	if !ok {
		return
	}

	rewardID, err := uuid.Parse(c.Param("reward_id"))
	if err != nil {
		log.Info("failed to parse reward_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward_id"})
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	res, err := r.rs.ClaimReward(c.Request.Context(), rewardID, userID, key)
	if err != nil {
		respondError(c, err, "failed to claim reward")
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}

	c.JSON(status, ClaimResponse{
		ClaimID:        res.Claim.ID,
		IdempotencyKey: res.Claim.IdempotencyKey,
		Status:         string(res.Claim.Status),
		ClaimedAt:      res.Claim.ClaimedAt,
		Replayed:       res.Replayed,
		Reward:         toRewardResponse(res.Reward),
	})
}
