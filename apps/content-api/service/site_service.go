package service

import (
	"strings"

	"headless-pro/apps/content-api/schema"
	"headless-pro/pkg/config"
)

// SiteInfo 站点元信息
type SiteInfo struct {
	Name                 string
	Description          string
	URL                  string
	AdminEmail           string
	Language             string
	Timezone             string
	DateFormat           string
	TimeFormat           string
	ThemeName            string
	ThemeVersion         string
	Version              string
	RESTURL              string
	RESTPrefix           string
	FrontendURL          string
	QueryComplexityLimit int
	Status               APIStatus
}

// APIStatus 接口能力
type APIStatus struct {
	RESTAPI      bool
	FieldSchemas bool
}

// SiteService 站点信息
type SiteService struct {
	cfg      *config.Config
	registry *schema.Registry
}

// NewSiteService 创建站点信息服务
func NewSiteService(cfg *config.Config, registry *schema.Registry) *SiteService {
	return &SiteService{cfg: cfg, registry: registry}
}

// Info 返回站点信息，字段组能力由注册表决定
func (s *SiteService) Info() *SiteInfo {
	site := s.cfg.Site
	prefix := restPrefix(s.cfg.Headless.APIRoot)

	return &SiteInfo{
		Name:                 site.Name,
		Description:          site.Description,
		URL:                  site.URL,
		AdminEmail:           site.AdminEmail,
		Language:             site.Language,
		Timezone:             site.Timezone,
		DateFormat:           site.DateFormat,
		TimeFormat:           site.TimeFormat,
		ThemeName:            site.ThemeName,
		ThemeVersion:         site.ThemeVersion,
		Version:              s.cfg.App.Version,
		RESTURL:              strings.TrimRight(site.URL, "/") + "/" + prefix + "/",
		RESTPrefix:           prefix,
		FrontendURL:          s.cfg.Headless.FrontendURL,
		QueryComplexityLimit: s.cfg.QueryComplexityLimit(),
		Status: APIStatus{
			RESTAPI:      true,
			FieldSchemas: s.registry.HasFieldSchemas(),
		},
	}
}

// restPrefix API根路径的第一段，如 /wp-json/headless/v1 → wp-json
func restPrefix(apiRoot string) string {
	trimmed := strings.Trim(apiRoot, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
