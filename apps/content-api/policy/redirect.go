package policy

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Decision 跳转判定结果
type Decision int

const (
	// DecisionPass 正常处理
	DecisionPass Decision = iota
	// DecisionRedirect 301到前端站点
	DecisionRedirect
	// DecisionInterstitial 先展示跳转提示页
	DecisionInterstitial
)

func (d Decision) String() string {
	switch d {
	case DecisionRedirect:
		return "redirect"
	case DecisionInterstitial:
		return "interstitial"
	default:
		return "pass"
	}
}

// DefaultExemptions 不跳转的路径。以 "/" 结尾表示目录，以 "*" 结尾表示任意前缀，
// 其余只匹配路径本身及其子路径
var DefaultExemptions = []string{
	"/wp-json/",
	"/graphql",
	"/wp-admin/",
	"/wp-login.php",
	"/wp-content/",
	"/wp-includes/",
	"/.well-known/",
	"/xmlrpc.php",
	"/feed/",
	"/sitemap*",
	"/wp-sitemap*",
	"/health",
}

// RedirectPolicy 把前台访问永久跳转到前端站点
type RedirectPolicy struct {
	target     string
	exemptions []string
}

// NewRedirectPolicy 创建跳转策略，target 为空时不跳转；extra 追加豁免前缀（如API根路径）
func NewRedirectPolicy(target string, extra ...string) *RedirectPolicy {
	exemptions := append([]string(nil), DefaultExemptions...)
	for _, prefix := range extra {
		if prefix != "" {
			exemptions = append(exemptions, prefix)
		}
	}
	return &RedirectPolicy{target: target, exemptions: exemptions}
}

// Target 跳转目标
func (p *RedirectPolicy) Target() string {
	return p.target
}

// Exempt 路径是否命中豁免
func (p *RedirectPolicy) Exempt(path string) bool {
	for _, rule := range p.exemptions {
		if matchExemption(rule, path) {
			return true
		}
	}
	return false
}

func matchExemption(rule, path string) bool {
	switch {
	case strings.HasSuffix(rule, "*"):
		return strings.HasPrefix(path, strings.TrimSuffix(rule, "*"))
	case strings.HasSuffix(rule, "/"):
		return strings.HasPrefix(path, rule) || path == strings.TrimSuffix(rule, "/")
	default:
		return path == rule || strings.HasPrefix(path, rule+"/")
	}
}

// Decide 对请求做跳转判定，只依赖请求和配置
func (p *RedirectPolicy) Decide(r *http.Request) Decision {
	if p.target == "" || p.Exempt(r.URL.Path) {
		return DecisionPass
	}

	query := r.URL.Query()
	if isBackground(r.URL.Path, query) || query.Get("preview") == "true" {
		return DecisionPass
	}
	if _, ok := query["show_redirect_message"]; ok {
		return DecisionInterstitial
	}
	return DecisionRedirect
}

func isBackground(path string, query url.Values) bool {
	if strings.HasPrefix(path, "/wp-cron.php") {
		return true
	}
	_, ok := query["doing_wp_cron"]
	return ok
}

var interstitialTmpl = template.Must(template.New("interstitial").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Redirecting...</title>
<meta http-equiv="refresh" content="3;url={{.Target}}">
<style>
body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
.message { max-width: 500px; margin: 0 auto; }
</style>
</head>
<body>
<div class="message">
<h1>Redirecting to Main Site</h1>
<p>You're being redirected to <strong>{{.Host}}</strong></p>
<p>If you're not redirected automatically, <a href="{{.Target}}">click here</a>.</p>
</div>
</body>
</html>
`))

// Middleware 在路由前执行跳转判定，跳转后终止请求
func (p *RedirectPolicy) Middleware() gin.HandlerFunc {
	host := p.target
	if u, err := url.Parse(p.target); err == nil && u.Host != "" {
		host = u.Host
	}

	return func(c *gin.Context) {
		switch p.Decide(c.Request) {
		case DecisionRedirect:
			c.Redirect(http.StatusMovedPermanently, p.target)
			c.Abort()
		case DecisionInterstitial:
			c.Header("Content-Type", "text/html; charset=utf-8")
			c.Status(http.StatusOK)
			_ = interstitialTmpl.Execute(c.Writer, struct{ Target, Host string }{p.target, host})
			c.Abort()
		default:
			c.Next()
		}
	}
}
