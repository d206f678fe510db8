package converter

import (
	"strconv"
	"strings"
	"time"

	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/service"
)

// excerptWords 自动摘要的词数
const excerptWords = 55

// 各类型的固定链接前缀，文章和页面直接挂在站点根
var permalinkBase = map[model.Kind]string{
	model.KindProject: "projects",
	model.KindSkill:   "skills",
	model.KindHobby:   "hobbies",
	model.KindTech:    "technologies",
}

// Author 作者
type Author struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// SearchItem 搜索结果条目
type SearchItem struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Excerpt       string `json:"excerpt"`
	Permalink     string `json:"permalink"`
	PostType      string `json:"post_type"`
	Date          string `json:"date"`
	FeaturedImage string `json:"featured_image"`
}

// SearchResponse 搜索响应
type SearchResponse struct {
	Results []SearchItem `json:"results"`
	Total   int64        `json:"total"`
	Query   string       `json:"query"`
}

// Summary 相关内容、热门内容条目
type Summary struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Excerpt       string `json:"excerpt"`
	Permalink     string `json:"permalink"`
	Date          string `json:"date"`
	FeaturedImage string `json:"featured_image"`
	Author        Author `json:"author"`
	Views         *int64 `json:"views,omitempty"`
}

// PostResponse 单篇内容
type PostResponse struct {
	ID            int64                  `json:"id"`
	Type          string                 `json:"type"`
	Slug          string                 `json:"slug"`
	Status        string                 `json:"status"`
	Title         string                 `json:"title"`
	Content       string                 `json:"content"`
	Excerpt       string                 `json:"excerpt"`
	Date          string                 `json:"date"`
	Modified      string                 `json:"modified"`
	Permalink     string                 `json:"link"`
	FeaturedImage string                 `json:"featured_image"`
	Author        Author                 `json:"author"`
	Categories    []int64                `json:"categories"`
	Tags          []int64                `json:"tags"`
	ReadingTime   string                 `json:"reading_time"`
	PlainExcerpt  string                 `json:"plain_excerpt"`
	Views         int64                  `json:"views"`
	ACFFields     map[string]interface{} `json:"acf_fields"`
	Template      *string                `json:"template,omitempty"`
}

// ThemeInfo 主题
type ThemeInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// APIEndpoints 接口入口
type APIEndpoints struct {
	REST       string `json:"rest"`
	RESTPrefix string `json:"rest_prefix"`
}

// APIStatus 接口能力
type APIStatus struct {
	RESTAPI bool `json:"rest_api"`
	ACF     bool `json:"acf"`
}

// SiteInfoResponse 站点信息
type SiteInfoResponse struct {
	Name                 string       `json:"name"`
	Description          string       `json:"description"`
	URL                  string       `json:"url"`
	Language             string       `json:"language"`
	Timezone             string       `json:"timezone"`
	DateFormat           string       `json:"date_format"`
	TimeFormat           string       `json:"time_format"`
	Theme                ThemeInfo    `json:"theme"`
	Version              string       `json:"version"`
	FrontendURL          string       `json:"frontend_url"`
	QueryComplexityLimit int          `json:"query_complexity_limit"`
	APIEndpoints         APIEndpoints `json:"api_endpoints"`
	APIStatus            APIStatus    `json:"api_status"`
}

// ContactResponse 联系表单响应
type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NonceResponse nonce响应
type NonceResponse struct {
	ContactNonce string `json:"contact_nonce"`
}

// Converter 转换器，提供Model到响应结构的转换
type Converter struct {
	siteURL string
}

// NewConverter 创建转换器实例，siteURL 用于拼接固定链接
func NewConverter(siteURL string) *Converter {
	return &Converter{siteURL: strings.TrimRight(siteURL, "/")}
}

// Permalink 内容的固定链接
func (c *Converter) Permalink(item *model.ContentItem) string {
	slug := item.Slug
	if slug == "" {
		slug = strconv.FormatInt(item.ID, 10)
	}
	if base, ok := permalinkBase[item.Kind]; ok {
		return c.siteURL + "/" + base + "/" + slug + "/"
	}
	return c.siteURL + "/" + slug + "/"
}

// SearchResultToResponse 转换搜索结果
func (c *Converter) SearchResultToResponse(result *model.SearchResult) *SearchResponse {
	items := make([]SearchItem, 0, len(result.Results))
	for _, item := range result.Results {
		items = append(items, SearchItem{
			ID:            item.ID,
			Title:         item.Title,
			Excerpt:       Excerpt(item),
			Permalink:     c.Permalink(item),
			PostType:      string(item.Kind),
			Date:          formatTime(item.PublishedAt),
			FeaturedImage: item.FeaturedImage,
		})
	}
	return &SearchResponse{Results: items, Total: result.Total, Query: result.Query}
}

// SummariesToResponse 转换相关内容/热门内容列表，withViews 时带浏览量
func (c *Converter) SummariesToResponse(items []*model.ContentItem, withViews bool) []Summary {
	result := make([]Summary, 0, len(items))
	for _, item := range items {
		s := Summary{
			ID:            item.ID,
			Title:         item.Title,
			Excerpt:       Excerpt(item),
			Permalink:     c.Permalink(item),
			Date:          formatTime(item.PublishedAt),
			FeaturedImage: item.FeaturedImage,
			Author:        Author{Name: item.AuthorName, ID: item.AuthorID},
		}
		if withViews {
			views := service.ViewCount(item)
			s.Views = &views
		}
		result = append(result, s)
	}
	return result
}

// DecoratedToResponse 转换单篇内容，页面带模板
func (c *Converter) DecoratedToResponse(d *service.Decorated) *PostResponse {
	item := d.Item
	resp := &PostResponse{
		ID:            item.ID,
		Type:          string(item.Kind),
		Slug:          item.Slug,
		Status:        string(item.Status),
		Title:         item.Title,
		Content:       item.Body,
		Excerpt:       Excerpt(item),
		Date:          formatTime(item.PublishedAt),
		Modified:      formatTime(item.UpdatedAt),
		Permalink:     c.Permalink(item),
		FeaturedImage: item.FeaturedImage,
		Author:        Author{Name: item.AuthorName, ID: item.AuthorID},
		Categories:    nonNil(item.Categories),
		Tags:          nonNil(item.Tags),
		ReadingTime:   d.ReadingTime,
		PlainExcerpt:  d.PlainExcerpt,
		Views:         d.Views,
		ACFFields:     d.Fields,
	}
	if item.Kind == model.KindPage {
		template := item.Template
		if template == "" {
			template = "default"
		}
		resp.Template = &template
	}
	return resp
}

// SiteInfoToResponse 转换站点信息
func (c *Converter) SiteInfoToResponse(info *service.SiteInfo) *SiteInfoResponse {
	return &SiteInfoResponse{
		Name:                 info.Name,
		Description:          info.Description,
		URL:                  info.URL,
		Language:             info.Language,
		Timezone:             info.Timezone,
		DateFormat:           info.DateFormat,
		TimeFormat:           info.TimeFormat,
		Theme:                ThemeInfo{Name: info.ThemeName, Version: info.ThemeVersion},
		Version:              info.Version,
		FrontendURL:          info.FrontendURL,
		QueryComplexityLimit: info.QueryComplexityLimit,
		APIEndpoints:         APIEndpoints{REST: info.RESTURL, RESTPrefix: info.RESTPrefix},
		APIStatus:            APIStatus{RESTAPI: info.Status.RESTAPI, ACF: info.Status.FieldSchemas},
	}
}

// KindCountsToResponse 各类型数量，键为类型名
func (c *Converter) KindCountsToResponse(counts []model.KindCount) map[string]int64 {
	result := make(map[string]int64, len(counts))
	for _, kc := range counts {
		result[string(kc.Kind)] = kc.Count
	}
	return result
}

// Excerpt 摘要为空时取正文前55个词
func Excerpt(item *model.ContentItem) string {
	if strings.TrimSpace(item.Excerpt) != "" {
		return item.Excerpt
	}
	words := strings.Fields(service.StripMarkup(item.Body))
	if len(words) <= excerptWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:excerptWords], " ") + " […]"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
