package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
	tracecontext "headless-pro/pkg/context"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/telemetry"
)

// QueryService 内容查询服务：搜索、相关内容、热门内容
type QueryService struct {
	store    dao.ContentStore
	searcher dao.SearchDAO
	registry *schema.Registry
	views    ViewTracker
	timeout  time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// Option 查询服务选项
type Option func(*QueryService)

// WithSearcher 使用外部检索（Elasticsearch）处理关键词搜索
func WithSearcher(searcher dao.SearchDAO) Option {
	return func(s *QueryService) {
		s.searcher = searcher
	}
}

// WithViewTracker 设置浏览量记录方式，默认直接写存储
func WithViewTracker(views ViewTracker) Option {
	return func(s *QueryService) {
		s.views = views
	}
}

// WithClock 替换时钟，热门时间范围按它计算
func WithClock(now func() time.Time) Option {
	return func(s *QueryService) {
		s.now = now
	}
}

// NewQueryService 创建查询服务，timeout<=0 时不限制单次存储调用时长
func NewQueryService(store dao.ContentStore, registry *schema.Registry, timeout time.Duration, log logger.Logger, opts ...Option) *QueryService {
	s := &QueryService{
		store:    store,
		registry: registry,
		timeout:  timeout,
		now:      time.Now,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.views == nil {
		s.views = NewDirectViewTracker(store)
	}
	return s
}

// Search 关键词搜索已发布内容，标题命中优先，其次按发布时间倒序
func (s *QueryService) Search(ctx context.Context, query string, kind *model.Kind, limit int) (*model.SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.service.Search")
	defer span.End()

	query = strings.TrimSpace(query)
	span.SetAttributes(attribute.String("search.query", query), attribute.Int("search.limit", limit))

	if query == "" {
		return nil, model.NewInvalidArgument("query", "must not be empty")
	}
	if limit <= 0 {
		return nil, model.NewInvalidArgument("limit", "must be positive, got %d", limit)
	}

	filter := &model.ContentFilter{
		Keyword:  query,
		Statuses: []model.Status{model.StatusPublished},
		OrderBy:  model.OrderByRelevance,
		Limit:    clampLimit(limit),
	}
	if kind != nil && *kind != model.KindAny {
		if !s.registry.Has(*kind) {
			return nil, &model.UnknownKindError{Kind: *kind}
		}
		filter.Kinds = []model.Kind{*kind}
	}

	find := s.store.FindByFilter
	if s.searcher != nil {
		find = s.searcher.Search
	}

	result, err := callStore(ctx, s.timeout, "search", func(ctx context.Context) (found, error) {
		items, total, err := find(ctx, filter)
		return found{items: items, total: total}, err
	})
	if err == nil && s.searcher != nil && len(result.items) > 0 {
		result, err = s.verifyHits(ctx, result)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn(ctx, "Search failed", logger.F("query", query), logger.F("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int64("search.total", result.total))
	return &model.SearchResult{Results: result.items, Total: result.total, Query: query}, nil
}

// RelatedTo 与指定内容同类型、共享分类（无分类时看标签）的其他已发布内容
func (s *QueryService) RelatedTo(ctx context.Context, id int64, limit int) ([]*model.ContentItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.service.RelatedTo")
	defer span.End()

	ctx = tracecontext.WithContentID(ctx, id)
	span.SetAttributes(attribute.Int64("content.id", id), attribute.Int("related.limit", limit))

	if limit <= 0 {
		return nil, model.NewInvalidArgument("limit", "must be positive, got %d", limit)
	}

	source, err := s.findByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	filter := &model.ContentFilter{
		Kinds:      []model.Kind{source.Kind},
		Statuses:   []model.Status{model.StatusPublished},
		ExcludeIDs: []int64{source.ID},
		OrderBy:    model.OrderByRecency,
		Limit:      clampLimit(limit),
	}
	switch {
	case len(source.Categories) > 0:
		filter.CategoryIDs = source.Categories
	case len(source.Tags) > 0:
		filter.TagIDs = source.Tags
	default:
		return []*model.ContentItem{}, nil
	}

	items, err := s.findByFilter(ctx, "related", filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return items, nil
}

// Popular 按浏览量倒序的已发布文章，同浏览量按发布时间倒序
func (s *QueryService) Popular(ctx context.Context, limit int, window string) ([]*model.ContentItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.service.Popular")
	defer span.End()

	span.SetAttributes(attribute.Int("popular.limit", limit), attribute.String("popular.window", window))

	if limit <= 0 {
		return nil, model.NewInvalidArgument("limit", "must be positive, got %d", limit)
	}
	if window == "" {
		window = model.WindowAll
	}
	if !model.ValidateWindow(window) {
		return nil, model.NewInvalidArgument("time_range", "unsupported value %q", window)
	}

	filter := &model.ContentFilter{
		Kinds:          []model.Kind{model.KindPost},
		Statuses:       []model.Status{model.StatusPublished},
		PublishedAfter: s.windowStart(window),
		OrderBy:        model.OrderByViews,
		Limit:          clampLimit(limit),
	}

	items, err := s.findByFilter(ctx, "popular", filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return items, nil
}

// Get 获取单篇已发布内容
func (s *QueryService) Get(ctx context.Context, id int64) (*model.ContentItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.service.Get")
	defer span.End()

	span.SetAttributes(attribute.Int64("content.id", id))

	item, err := s.findByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !item.IsPublished() {
		return nil, &model.NotFoundError{ID: id}
	}
	return item, nil
}

// RecordView 记录一次浏览，失败只记日志
func (s *QueryService) RecordView(ctx context.Context, id int64) {
	if err := s.views.Track(ctx, id); err != nil {
		s.logger.Warn(ctx, "Record view failed", logger.F("content_id", id), logger.F("error", err.Error()))
	}
}

// CountByKind 各已注册类型的已发布数量，没有内容的类型计0
func (s *QueryService) CountByKind(ctx context.Context) ([]model.KindCount, error) {
	ctx, span := telemetry.StartSpan(ctx, "content.service.CountByKind")
	defer span.End()

	counts, err := callStore(ctx, s.timeout, "count", func(ctx context.Context) ([]model.KindCount, error) {
		return s.store.CountByKind(ctx, model.StatusPublished)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	byKind := make(map[model.Kind]int64, len(counts))
	for _, c := range counts {
		byKind[c.Kind] = c.Count
	}

	kinds := s.registry.Kinds()
	result := make([]model.KindCount, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, model.KindCount{Kind: kind, Count: byKind[kind]})
	}
	return result, nil
}

func (s *QueryService) findByID(ctx context.Context, id int64) (*model.ContentItem, error) {
	if id <= 0 {
		return nil, &model.NotFoundError{ID: id}
	}
	item, err := callStore(ctx, s.timeout, "find", func(ctx context.Context) (*model.ContentItem, error) {
		return s.store.FindByID(ctx, id)
	})
	if errors.Is(err, dao.ErrNotFound) {
		return nil, &model.NotFoundError{ID: id}
	}
	return item, err
}

func (s *QueryService) findByFilter(ctx context.Context, op string, filter *model.ContentFilter) ([]*model.ContentItem, error) {
	result, err := callStore(ctx, s.timeout, op, func(ctx context.Context) (found, error) {
		items, total, err := s.store.FindByFilter(ctx, filter)
		return found{items: items, total: total}, err
	})
	if err != nil {
		return nil, err
	}
	if result.items == nil {
		return []*model.ContentItem{}, nil
	}
	return result.items, nil
}

// windowStart 时间范围起点，all 返回nil
func (s *QueryService) windowStart(window string) *time.Time {
	now := s.now()
	var start time.Time
	switch window {
	case model.WindowWeek:
		start = now.AddDate(0, 0, -7)
	case model.WindowMonth:
		start = now.AddDate(0, -1, 0)
	case model.WindowYear:
		start = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &start
}

type found struct {
	items []*model.ContentItem
	total int64
}

// verifyHits 以存储为准过滤索引命中：已不是发布状态或已删除的条目丢弃，并从索引中移除
func (s *QueryService) verifyHits(ctx context.Context, hits found) (found, error) {
	hitIDs := make([]int64, 0, len(hits.items))
	for _, item := range hits.items {
		hitIDs = append(hitIDs, item.ID)
	}

	current, err := callStore(ctx, s.timeout, "search", func(ctx context.Context) (found, error) {
		items, total, err := s.store.FindByFilter(ctx, &model.ContentFilter{
			IDs:      hitIDs,
			Statuses: []model.Status{model.StatusPublished},
		})
		return found{items: items, total: total}, err
	})
	if err != nil {
		return found{}, err
	}

	published := make(map[int64]*model.ContentItem, len(current.items))
	for _, item := range current.items {
		published[item.ID] = item
	}

	kept := make([]*model.ContentItem, 0, len(hits.items))
	var stale []int64
	for _, hit := range hits.items {
		if item, ok := published[hit.ID]; ok {
			kept = append(kept, item)
			continue
		}
		stale = append(stale, hit.ID)
	}

	if len(stale) > 0 {
		s.logger.Warn(ctx, "Search index returned unpublished content", logger.F("ids", stale))
		for _, id := range stale {
			if err := s.searcher.DeleteItem(ctx, id); err != nil {
				s.logger.Warn(ctx, "Remove stale search document failed", logger.F("id", id), logger.F("error", err.Error()))
			}
		}
	}

	total := hits.total - int64(len(stale))
	if total < int64(len(kept)) {
		total = int64(len(kept))
	}
	return found{items: kept, total: total}, nil
}

func clampLimit(limit int) int {
	if limit > model.MaxLimit {
		return model.MaxLimit
	}
	return limit
}

// callStore 在超时控制下调用存储。超时后放弃调用中的请求，不重试；
// dao.ErrNotFound 原样返回，其他错误包装为 StoreUnavailableError
func callStore[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(ctx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.val, nil
		}
		if errors.Is(out.err, dao.ErrNotFound) {
			return zero, out.err
		}
		return zero, &model.StoreUnavailableError{Op: op, Err: out.err}
	case <-ctx.Done():
		return zero, &model.StoreUnavailableError{Op: op, Err: ctx.Err()}
	}
}
