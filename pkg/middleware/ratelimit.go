package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"headless-pro/pkg/httpx"
	"headless-pro/pkg/logger"
)

// RateLimitKeyPrefix 限流计数键前缀
const RateLimitKeyPrefix = "headless:ratelimit:"

// RateCounter 固定窗口计数
type RateCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit 按客户端IP和路由做固定窗口限流，计数失败时放行
func RateLimit(counter RateCounter, limit int64, window time.Duration, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := RateLimitKeyPrefix + c.FullPath() + ":" + c.ClientIP()
		count, err := counter.Incr(ctx, key, window)
		if err != nil {
			log.Warn(ctx, "限流计数失败", logger.F("error", err.Error()))
			c.Next()
			return
		}

		if count > limit {
			log.Info(ctx, "请求被限流", logger.F("client_ip", c.ClientIP()), logger.F("path", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			httpx.WriteError(c, http.StatusTooManyRequests, "Too many requests, please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
