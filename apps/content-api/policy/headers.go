package policy

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders 通用安全响应头
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// DisableXMLRPC XML-RPC 一律拒绝
func DisableXMLRPC() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/xmlrpc.php") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "XML-RPC services are disabled on this site."})
			return
		}
		c.Next()
	}
}

// AccessPolicy 组合安全头、跨域和跳转，在所有路由之前执行
type AccessPolicy struct {
	CORS     *CORSPolicy
	Redirect *RedirectPolicy
}

// NewAccessPolicy 创建访问策略
func NewAccessPolicy(cors *CORSPolicy, redirect *RedirectPolicy) *AccessPolicy {
	return &AccessPolicy{CORS: cors, Redirect: redirect}
}

// Handlers 按顺序返回中间件：安全头、CORS（含预检）、XML-RPC、跳转
func (p *AccessPolicy) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		SecurityHeaders(),
		p.CORS.Middleware(),
		DisableXMLRPC(),
		p.Redirect.Middleware(),
	}
}
