package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/auth"
	"UD_referral_program/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Anything outside the
// service taxonomy is logged and reported as an opaque 500.
func respondError(c *gin.Context, err error, internalMsg string) {
	var rl *service.RateLimitError

	switch {
	case errors.As(err, &rl):
		retry := int64(math.Ceil(time.Until(rl.ResetAt).Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retry, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "window": rl.Window})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Logger().Error(internalMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}

func callerID(c *gin.Context) (int64, bool) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return user.ID, true
}
