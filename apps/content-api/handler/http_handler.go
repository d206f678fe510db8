package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"headless-pro/apps/content-api/converter"
	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
	"headless-pro/apps/content-api/service"
	tracecontext "headless-pro/pkg/context"
	"headless-pro/pkg/httpx"
	"headless-pro/pkg/logger"
)

const internalErrorMessage = "internal server error"

// HTTPHandler HTTP处理器
type HTTPHandler struct {
	apiRoot   string
	query     *service.QueryService
	decorator *service.FieldDecorator
	site      *service.SiteService
	contact   *service.ContactService
	registry  *schema.Registry
	converter *converter.Converter
	cache     []gin.HandlerFunc
	limiter   []gin.HandlerFunc
	logger    logger.Logger
}

// Services 处理器依赖的服务
type Services struct {
	Query     *service.QueryService
	Decorator *service.FieldDecorator
	Site      *service.SiteService
	Contact   *service.ContactService
	Registry  *schema.Registry
}

// Option 处理器选项
type Option func(*HTTPHandler)

// WithResponseCache 为只读查询接口挂上响应缓存
func WithResponseCache(cache gin.HandlerFunc) Option {
	return func(h *HTTPHandler) {
		if cache != nil {
			h.cache = append(h.cache, cache)
		}
	}
}

// WithContactLimiter 联系表单提交限流
func WithContactLimiter(limiter gin.HandlerFunc) Option {
	return func(h *HTTPHandler) {
		if limiter != nil {
			h.limiter = append(h.limiter, limiter)
		}
	}
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(apiRoot string, svcs Services, conv *converter.Converter, log logger.Logger, opts ...Option) *HTTPHandler {
	h := &HTTPHandler{
		apiRoot:   apiRoot,
		query:     svcs.Query,
		decorator: svcs.Decorator,
		site:      svcs.Site,
		contact:   svcs.Contact,
		registry:  svcs.Registry,
		converter: conv,
		logger:    log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes 注册HTTP路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group(h.apiRoot)
	{
		api.GET("/posts/:id", h.GetPost) // 单篇内容，会记录浏览量
		api.GET("/nonce", h.GetNonce)
		api.POST("/contact", append(h.limiter, h.SubmitContact)...)
	}

	cached := api.Group("", h.cache...)
	{
		cached.GET("/site-info", h.GetSiteInfo)
		cached.GET("/search", h.Search)
		cached.GET("/posts/popular", h.GetPopularPosts)
		cached.GET("/posts/:id/related", h.GetRelatedPosts)
		cached.GET("/post-type-counts", h.GetPostTypeCounts)
		cached.GET("/schemas", h.ListSchemas)
		cached.GET("/schemas/:kind", h.GetSchema)
	}
}

// GetSiteInfo 站点信息
func (h *HTTPHandler) GetSiteInfo(c *gin.Context) {
	httpx.WriteObject(c, http.StatusOK, h.converter.SiteInfoToResponse(h.site.Info()))
}

// Search 关键词搜索
func (h *HTTPHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := intQuery(c, "limit", model.DefaultSearchLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var kind *model.Kind
	if raw := c.DefaultQuery("post_type", model.KindAny); raw != model.KindAny {
		k := model.Kind(raw)
		kind = &k
	}

	query := service.SanitizeTextField(c.Query("query"))
	result, err := h.query.Search(ctx, query, kind, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Debug(ctx, "Search served", logger.F("query", query), logger.F("total", result.Total))
	httpx.WriteObject(c, http.StatusOK, h.converter.SearchResultToResponse(result))
}

// GetPost 单篇内容及派生字段
func (h *HTTPHandler) GetPost(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx := tracecontext.WithContentID(c.Request.Context(), id)

	item, err := h.query.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.query.RecordView(ctx, id)
	httpx.WriteObject(c, http.StatusOK, h.converter.DecoratedToResponse(h.decorator.Decorate(item)))
}

// GetRelatedPosts 相关内容
func (h *HTTPHandler) GetRelatedPosts(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx := tracecontext.WithContentID(c.Request.Context(), id)

	limit, err := intQuery(c, "limit", model.DefaultRelatedLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items, err := h.query.RelatedTo(ctx, id, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, h.converter.SummariesToResponse(items, false))
}

// GetPopularPosts 热门文章
func (h *HTTPHandler) GetPopularPosts(c *gin.Context) {
	limit, err := intQuery(c, "limit", model.DefaultPopularLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items, err := h.query.Popular(c.Request.Context(), limit, c.DefaultQuery("time_range", model.WindowAll))
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, h.converter.SummariesToResponse(items, true))
}

// GetPostTypeCounts 各类型已发布数量
func (h *HTTPHandler) GetPostTypeCounts(c *gin.Context) {
	counts, err := h.query.CountByKind(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, h.converter.KindCountsToResponse(counts))
}

// ListSchemas 所有类型及字段组，无字段组的类型为null
func (h *HTTPHandler) ListSchemas(c *gin.Context) {
	kinds := h.registry.Kinds()
	result := make(map[string]*schema.Schema, len(kinds))
	for _, kind := range kinds {
		s, err := h.registry.GetSchema(kind)
		if err != nil {
			h.writeError(c, err)
			return
		}
		result[string(kind)] = s
	}
	httpx.WriteObject(c, http.StatusOK, result)
}

// GetSchema 单个类型的字段组
func (h *HTTPHandler) GetSchema(c *gin.Context) {
	s, err := h.registry.GetSchema(model.Kind(c.Param("kind")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, s)
}

// GetNonce 生成联系表单nonce
func (h *HTTPHandler) GetNonce(c *gin.Context) {
	nonce, err := h.contact.IssueNonce()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	httpx.WriteObject(c, http.StatusOK, converter.NonceResponse{ContactNonce: nonce})
}

// SubmitContact 联系表单提交
func (h *HTTPHandler) SubmitContact(c *gin.Context) {
	var req service.ContactRequest
	if err := c.ShouldBind(&req); err != nil {
		h.writeError(c, model.NewInvalidArgument("body", "%s", err.Error()))
		return
	}
	req.ClientIP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	if err := h.contact.Submit(c.Request.Context(), &req); err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, converter.ContactResponse{Success: true, Message: model.ContactSuccessText})
}

func (h *HTTPHandler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		// 与不存在的内容一致
		h.writeError(c, &model.NotFoundError{ID: id})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidArgument(name, "%q is not an integer", raw)
	}
	return v, nil
}

// writeError 类型化错误映射为HTTP状态码，5xx不暴露内部细节
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var (
		invalid     *model.InvalidArgumentError
		forbidden   *model.ForbiddenError
		unknownKind *model.UnknownKindError
		notFound    *model.NotFoundError
		unavailable *model.StoreUnavailableError
		mailErr     *model.MailSendError
	)

	switch {
	case errors.As(err, &invalid):
		httpx.WriteError(c, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &forbidden):
		httpx.WriteError(c, http.StatusForbidden, forbidden.Error())
	case errors.As(err, &unknownKind):
		httpx.WriteError(c, http.StatusNotFound, unknownKind.Error())
	case errors.As(err, &notFound):
		httpx.WriteError(c, http.StatusNotFound, "content not found")
	case errors.As(err, &unavailable):
		h.logger.Error(ctx, "Content store unavailable", logger.F("op", unavailable.Op), logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusServiceUnavailable, "content store unavailable, please retry")
	case errors.As(err, &mailErr):
		httpx.WriteError(c, http.StatusInternalServerError, model.ContactFailureText)
	default:
		h.logger.Error(ctx, "Unexpected error", logger.F("path", c.FullPath()), logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusInternalServerError, internalErrorMessage)
	}
}
