package api

import (
	"net/http"
	"time"

	"UD_referral_program/internal/middleware"
	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cronRoutes struct {
	jobs service.JobRunnerI
	rs   service.RewardServiceI
}

// NewCronRoutes registers the scheduler-triggered jobs and the reward
// approval hook, both behind the shared scheduler secret.
func NewCronRoutes(handler *gin.RouterGroup, jobs service.JobRunnerI, rs service.RewardServiceI, authz *middleware.Authorization) {
	r := &cronRoutes{jobs: jobs, rs: rs}

	cron := handler.Group("/cron")
	cron.Use(authz.SchedulerOnly())
	{
		cron.POST("/leaderboard", r.RebuildLeaderboard)
		cron.POST("/monthly-prize", r.ComputeMonthlyPrize)
		cron.POST("/cleanup", r.CleanupOldClicks)
	}

	admin := handler.Group("/admin")
	admin.Use(authz.SchedulerOnly())
	{
		admin.POST("/rewards/:reward_id/approve", r.ApproveReward)
	}
}

func (r *cronRoutes) RebuildLeaderboard(c *gin.Context) {
	res, err := r.jobs.RebuildLeaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to rebuild leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"week_id": res.WeekID,
		"entries": res.Entries,
	})
}

type MonthlyPrizeResponse struct {
	MonthKey       string     `json:"month_key"`
	Qualifying     int        `json:"qualifying"`
	Created        bool       `json:"created"`
	WinnerUserID   *int64     `json:"winner_user_id,omitempty"`
	ReferralsCount int        `json:"referrals_count,omitempty"`
	RewardID       *uuid.UUID `json:"reward_id,omitempty"`
	AwardedAt      *time.Time `json:"awarded_at,omitempty"`
}

func (r *cronRoutes) ComputeMonthlyPrize(c *gin.Context) {
	res, err := r.jobs.ComputeMonthlyPrize(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to compute monthly prize")
		return
	}

	out := MonthlyPrizeResponse{
		MonthKey:   res.MonthKey,
		Qualifying: res.Qualifying,
		Created:    res.Created,
	}
	if p := res.Prize; p != nil {
		out.WinnerUserID = &p.WinnerUserID
		out.ReferralsCount = p.ReferralsCount
		out.RewardID = &p.RewardID
		out.AwardedAt = &p.AwardedAt
	}

	c.JSON(http.StatusOK, out)
}

func (r *cronRoutes) CleanupOldClicks(c *gin.Context) {
	res, err := r.jobs.CleanupOldClicks(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to clean up clicks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cutoff":  res.Cutoff,
		"deleted": res.Deleted,
	})
}

func (r *cronRoutes) ApproveReward(c *gin.Context) {
	log := logger.Logger()

	rewardID, err := uuid.Parse(c.Param("reward_id"))
	if err != nil {
		log.Info("failed to parse reward_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward_id"})
		return
	}

	rw, err := r.rs.ApproveReward(c.Request.Context(), rewardID)
	if err != nil {
		respondError(c, err, "failed to approve reward")
		return
	}

	c.JSON(http.StatusOK, toRewardResponse(rw))
}
