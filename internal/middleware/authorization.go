package middleware

import (
	"crypto/subtle"
	"net/http"

	"UD_referral_program/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const CronSecretHeader = "X-Cron-Secret"

type Authorization struct {
	cronSecret string
}

func NewAuthorization(cronSecret string) *Authorization {
	return &Authorization{
		cronSecret: cronSecret,
	}
}

// SchedulerOnly admits requests carrying the shared scheduler secret. With no
// secret configured every request is refused.
func (a *Authorization) SchedulerOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		if a.cronSecret == "" {
			log.Error("scheduler endpoint called but no cron secret is configured")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "scheduler access disabled"})
			return
		}

		provided := c.GetHeader(CronSecretHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "cron secret is required"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.cronSecret)) != 1 {
			log.Info("invalid cron secret",
				zap.String("path", c.FullPath()),
				zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
			return
		}

		c.Next()
	}
}
