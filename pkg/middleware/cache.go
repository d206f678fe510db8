package middleware

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"headless-pro/pkg/logger"
	"headless-pro/pkg/redis"
)

// 缓存相关常量
const (
	CacheHeader    = "X-Cache"
	CacheStatusKey = "cache_status"
	CacheKeyPrefix = "headless:response:"

	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// ResponseStore 响应缓存的存储
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// cachedResponse 缓存的响应
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder 记录响应体
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache GET接口响应缓存，只缓存200响应；缓存读写失败时直接放行
func ResponseCache(store ResponseStore, ttl time.Duration, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || ttl <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := CacheKey(c.Request)

		if raw, err := store.Get(ctx, key); err == nil {
			var cached cachedResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				c.Set(CacheStatusKey, CacheHit)
				c.Header(CacheHeader, CacheHit)
				c.Data(cached.Status, cached.ContentType, cached.Body)
				c.Abort()
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn(ctx, "读取响应缓存失败", logger.F("error", err.Error()))
		}

		c.Set(CacheStatusKey, CacheMiss)
		c.Header(CacheHeader, CacheMiss)

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		if recorder.Status() != http.StatusOK {
			return
		}

		payload, err := json.Marshal(cachedResponse{
			Status:      recorder.Status(),
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := store.Set(ctx, key, payload, ttl); err != nil {
			log.Warn(ctx, "写入响应缓存失败", logger.F("error", err.Error()))
		}
	}
}

// CacheKey 由方法、路径、查询串和Accept生成缓存键
func CacheKey(r *http.Request) string {
	sum := md5.Sum([]byte(r.Method + "|" + r.URL.Path + "?" + r.URL.RawQuery + "|" + r.Header.Get("Accept")))
	return CacheKeyPrefix + hex.EncodeToString(sum[:])
}
