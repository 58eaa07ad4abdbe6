package api

import (
	"net/http"

	"UD_referral_program/internal/model"
	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/auth"

	"github.com/gin-gonic/gin"
)

type leaderboardRoutes struct {
	ls service.LeaderboardServiceI
}

func NewLeaderboardRoutes(handler *gin.RouterGroup, ls service.LeaderboardServiceI, a *auth.TelegramAuth) {
	r := &leaderboardRoutes{ls: ls}
	h := handler.Group("/leaderboard")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.GetLeaderboard)
	}
}

type LeaderboardRowResponse struct {
	Rank        int    `json:"rank"`
	Points      int    `json:"points"`
	MaskedEmail string `json:"masked_email"`
}

type LeaderboardResponse struct {
	Period  string                   `json:"period"`
	WeekID  string                   `json:"week_id,omitempty"`
	Entries []LeaderboardRowResponse `json:"entries"`
	Me      *LeaderboardRowResponse  `json:"me,omitempty"`
}

func toRowResponse(row model.LeaderboardRow) LeaderboardRowResponse {
	return LeaderboardRowResponse{
		Rank:        row.Rank,
		Points:      row.Points,
		MaskedEmail: row.MaskedEmail,
	}
}

func (r *leaderboardRoutes) GetLeaderboard(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	period := model.LeaderboardPeriod(c.DefaultQuery("period", string(model.LeaderboardPeriodWeek)))

	board, err := r.ls.GetLeaderboard(c.Request.Context(), period, userID)
	if err != nil {
		respondError(c, err, "failed to get leaderboard")
		return
	}

	out := LeaderboardResponse{
		Period:  string(board.Period),
		WeekID:  board.WeekID,
		Entries: make([]LeaderboardRowResponse, len(board.Entries)),
	}
	for i, row := range board.Entries {
		out.Entries[i] = toRowResponse(row)
	}
	if board.Me != nil {
		me := toRowResponse(*board.Me)
		out.Me = &me
	}

	c.JSON(http.StatusOK, out)
}
