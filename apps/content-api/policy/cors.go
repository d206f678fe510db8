package policy

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 固定的CORS响应头
const (
	AllowMethods  = "GET, POST, OPTIONS, PUT, DELETE"
	AllowHeaders  = "Authorization, Content-Type, X-Requested-With"
	ExposeHeaders = "X-WP-Total, X-WP-TotalPages"
)

// CORSPolicy 跨域白名单，大小写敏感的精确匹配，不支持通配符和子域名
type CORSPolicy struct {
	allowed map[string]struct{}
}

// CORSOption 白名单选项
type CORSOption func(*CORSPolicy)

// WithExtraOrigins 追加允许的来源
func WithExtraOrigins(origins ...string) CORSOption {
	return func(p *CORSPolicy) {
		for _, o := range origins {
			if o != "" {
				p.allowed[o] = struct{}{}
			}
		}
	}
}

// NewCORSPolicy 创建跨域策略
func NewCORSPolicy(origins []string, opts ...CORSOption) *CORSPolicy {
	p := &CORSPolicy{allowed: make(map[string]struct{}, len(origins))}
	WithExtraOrigins(origins...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allowed 来源是否在白名单内
func (p *CORSPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := p.allowed[origin]
	return ok
}

// Headers 允许的来源返回需要写入的响应头，否则返回nil
func (p *CORSPolicy) Headers(origin string) http.Header {
	if !p.Allowed(origin) {
		return nil
	}
	return http.Header{
		"Access-Control-Allow-Origin":      {origin},
		"Access-Control-Allow-Credentials": {"true"},
		"Access-Control-Allow-Methods":     {AllowMethods},
		"Access-Control-Allow-Headers":     {AllowHeaders},
		"Access-Control-Expose-Headers":    {ExposeHeaders},
	}
}

// Middleware 写入CORS头；OPTIONS预检直接返回200，不进入路由
func (p *CORSPolicy) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Add("Vary", "Origin")
		for k, v := range p.Headers(c.GetHeader("Origin")) {
			c.Writer.Header()[k] = v
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
