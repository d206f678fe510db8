package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"headless-pro/apps/content-api/converter"
	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
	"headless-pro/apps/content-api/service"
	"headless-pro/pkg/auth"
	"headless-pro/pkg/config"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/middleware"
	"headless-pro/pkg/redis"
	"headless-pro/pkg/snowflake"
)

const apiRoot = "/wp-json/headless/v1"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubMailer struct {
	mu   sync.Mutex
	sent []*model.MailMessage
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg *model.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

type fixture struct {
	engine *gin.Engine
	store  dao.ContentStore
	mailer *stubMailer
}

func newFixture(t *testing.T, store dao.ContentStore, opts ...Option) *fixture {
	t.Helper()

	registry, err := schema.NewDefaultRegistry()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Site.Name = "Edris Husein"
	cfg.Site.URL = "https://cms.example.com"
	cfg.Site.AdminEmail = "admin@example.com"
	cfg.Headless.APIRoot = apiRoot

	ids, err := snowflake.NewSnowflake(1)
	require.NoError(t, err)
	nonces := auth.NewNonceManager(auth.NonceConfig{Secret: "s", ExpireTime: time.Hour})
	mailer := &stubMailer{}
	log := logger.NewNopLogger()

	h := NewHTTPHandler(apiRoot, Services{
		Query:     service.NewQueryService(store, registry, time.Second, log),
		Decorator: service.NewFieldDecorator(registry),
		Site:      service.NewSiteService(cfg, registry),
		Contact:   service.NewContactService(cfg.Site, nonces, mailer, nil, ids, log),
		Registry:  registry,
	}, converter.NewConverter(cfg.Site.URL), log, opts...)

	r := gin.New()
	h.RegisterRoutes(r)
	return &fixture{engine: r, store: store, mailer: mailer}
}

func seed() dao.ContentStore {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return dao.NewMemoryDAO(
		&model.ContentItem{ID: 1, Kind: model.KindPost, Slug: "learning-go", Title: "Learning Go", Body: "<p>" + strings.Repeat("go ", 250) + "</p>",
			Excerpt: "<p>Intro to <b>Go</b></p>", Status: model.StatusPublished, Categories: []int64{1}, ViewCount: 3, PublishedAt: base},
		&model.ContentItem{ID: 2, Kind: model.KindPost, Slug: "go-tests", Title: "Go tests", Body: "tables", Status: model.StatusPublished,
			Categories: []int64{1}, ViewCount: 9, PublishedAt: base.Add(time.Hour)},
		&model.ContentItem{ID: 3, Kind: model.KindPage, Slug: "about", Title: "About", Body: "me", Status: model.StatusPublished, PublishedAt: base},
		&model.ContentItem{ID: 4, Kind: model.KindPost, Title: "Secret draft", Body: "go", Status: model.StatusDraft, PublishedAt: base},
	)
}

func (f *fixture) do(method, path string, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, apiRoot+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, apiRoot+path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/search?query=go", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp converter.SearchResponse
	decode(t, w, &resp)
	assert.EqualValues(t, 2, resp.Total)
	assert.Equal(t, "go", resp.Query)
	require.Len(t, resp.Results, 2)
	assert.EqualValues(t, 2, resp.Results[0].ID)
	assert.Equal(t, "post", resp.Results[0].PostType)
	assert.Equal(t, "https://cms.example.com/go-tests/", resp.Results[0].Permalink)

	w = f.do(http.MethodGet, "/search?query=go&limit=1&post_type=post", "")
	decode(t, w, &resp)
	assert.Len(t, resp.Results, 1)
	assert.EqualValues(t, 2, resp.Total)
}

func TestSearchErrors(t *testing.T) {
	f := newFixture(t, seed())

	cases := []struct {
		path string
		code int
	}{
		{"/search", http.StatusBadRequest},
		{"/search?query=%20%20", http.StatusBadRequest},
		{"/search?query=go&limit=0", http.StatusBadRequest},
		{"/search?query=go&limit=ten", http.StatusBadRequest},
		{"/search?query=go&post_type=recipe", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := f.do(http.MethodGet, tc.path, "")
		assert.Equal(t, tc.code, w.Code, tc.path)

		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		decode(t, w, &body)
		assert.Equal(t, tc.code, body.Code)
		assert.NotEmpty(t, body.Message)
	}
}

func TestGetPostRecordsView(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/posts/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var post converter.PostResponse
	decode(t, w, &post)
	assert.Equal(t, "2 min read", post.ReadingTime)
	assert.Equal(t, "Intro to Go", post.PlainExcerpt)
	assert.EqualValues(t, 3, post.Views)
	assert.Equal(t, false, post.ACFFields["featured_post"])
	assert.Nil(t, post.Template)

	item, err := f.store.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, item.ViewCount)

	w = f.do(http.MethodGet, "/posts/3", "")
	decode(t, w, &post)
	require.NotNil(t, post.Template)
	assert.Equal(t, "default", *post.Template)

	for _, path := range []string{"/posts/4", "/posts/999", "/posts/abc", "/posts/-1"} {
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, path, "").Code, path)
	}
}

func TestRelatedAndPopular(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/posts/1/related", "")
	require.Equal(t, http.StatusOK, w.Code)
	var related []converter.Summary
	decode(t, w, &related)
	require.Len(t, related, 1)
	assert.EqualValues(t, 2, related[0].ID)
	assert.Nil(t, related[0].Views)

	w = f.do(http.MethodGet, "/posts/3/related", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/posts/999/related", "").Code)

	w = f.do(http.MethodGet, "/posts/popular?time_range=all", "")
	require.Equal(t, http.StatusOK, w.Code)
	var popular []converter.Summary
	decode(t, w, &popular)
	require.Len(t, popular, 2)
	assert.EqualValues(t, 2, popular[0].ID)
	require.NotNil(t, popular[0].Views)
	assert.EqualValues(t, 9, *popular[0].Views)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/posts/popular?time_range=decade", "").Code)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	f := newFixture(t, &failingStore{})

	w := f.do(http.MethodGet, "/search?query=go", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestSiteInfoAndCounts(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/site-info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info converter.SiteInfoResponse
	decode(t, w, &info)
	assert.Equal(t, "Edris Husein", info.Name)
	assert.True(t, info.APIStatus.RESTAPI)
	assert.True(t, info.APIStatus.ACF)
	assert.Equal(t, "wp-json", info.APIEndpoints.RESTPrefix)

	w = f.do(http.MethodGet, "/post-type-counts", "")
	require.Equal(t, http.StatusOK, w.Code)
	var counts map[string]int64
	decode(t, w, &counts)
	assert.EqualValues(t, 2, counts["post"])
	assert.EqualValues(t, 1, counts["page"])
	assert.Contains(t, counts, "tech")
}

func TestSchemaEndpoints(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/schemas/skill", "")
	require.Equal(t, http.StatusOK, w.Code)
	var s schema.Schema
	decode(t, w, &s)
	_, ok := s.Field("skill_level")
	assert.True(t, ok)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/schemas/recipe", "").Code)

	w = f.do(http.MethodGet, "/schemas", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all map[string]*schema.Schema
	decode(t, w, &all)
	assert.Len(t, all, len(model.AllKinds))
	assert.Nil(t, all["tech"])
}

func TestContactFlow(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/nonce", "")
	require.Equal(t, http.StatusOK, w.Code)
	var nonce converter.NonceResponse
	decode(t, w, &nonce)
	require.NotEmpty(t, nonce.ContactNonce)

	body := func(n string) string {
		raw, _ := json.Marshal(map[string]string{"name": "Jane", "email": "jane@example.com", "message": "Hi", "nonce": n})
		return string(raw)
	}

	w = f.do(http.MethodPost, "/contact", body(nonce.ContactNonce))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp converter.ContactResponse
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, model.ContactSuccessText, resp.Message)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "admin@example.com", f.mailer.sent[0].To)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/contact", body("forged")).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/contact", `{"name":"","email":"x","message":"","nonce":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/contact", `{not json`).Code)

	f.mailer.err = errors.New("smtp down")
	w = f.do(http.MethodPost, "/contact", body(nonce.ContactNonce))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), model.ContactFailureText)
	assert.NotContains(t, w.Body.String(), "smtp down")
}

func TestContactAcceptsForm(t *testing.T) {
	f := newFixture(t, seed())

	var nonce converter.NonceResponse
	decode(t, f.do(http.MethodGet, "/nonce", ""), &nonce)

	form := url.Values{"name": {"Jane"}, "email": {"jane@example.com"}, "message": {"Hi"}, "nonce": {nonce.ContactNonce}}
	req := httptest.NewRequest(http.MethodPost, apiRoot+"/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestResponseCache(t *testing.T) {
	store := &memoryStore{data: make(map[string]string)}
	f := newFixture(t, seed(), WithResponseCache(middleware.ResponseCache(store, time.Minute, logger.NewNopLogger())))

	first := f.do(http.MethodGet, "/posts/popular", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, middleware.CacheMiss, first.Header().Get(middleware.CacheHeader))

	second := f.do(http.MethodGet, "/posts/popular", "")
	assert.Equal(t, middleware.CacheHit, second.Header().Get(middleware.CacheHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// 单篇内容记录浏览量，不走缓存
	w := f.do(http.MethodGet, "/posts/1", "")
	assert.Empty(t, w.Header().Get(middleware.CacheHeader))
}

type countingLimiter struct{ n int64 }

func (l *countingLimiter) Incr(context.Context, string, time.Duration) (int64, error) {
	l.n++
	return l.n, nil
}

func TestContactLimiter(t *testing.T) {
	limiter := middleware.RateLimit(&countingLimiter{}, 1, time.Minute, logger.NewNopLogger())
	f := newFixture(t, seed(), WithContactLimiter(limiter))

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/contact", `{}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/contact", `{}`).Code)
	// 只限制提交接口
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/nonce", "").Code)
}

func TestProtobufNegotiation(t *testing.T) {
	f := newFixture(t, seed())

	w := f.do(http.MethodGet, "/site-info", "", "Accept", "application/x-protobuf")
	require.Equal(t, http.StatusOK, w.Code)

	var v structpb.Value
	require.NoError(t, proto.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "Edris Husein", v.GetStructValue().GetFields()["name"].GetStringValue())
}

type failingStore struct{}

func (failingStore) FindByID(context.Context, int64) (*model.ContentItem, error) {
	return nil, errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")
}

func (failingStore) FindByFilter(context.Context, *model.ContentFilter) ([]*model.ContentItem, int64, error) {
	return nil, 0, errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")
}

func (failingStore) IncrementViewCount(context.Context, int64) error { return nil }

func (failingStore) Create(context.Context, *model.ContentItem) error { return nil }

func (failingStore) CountByKind(context.Context, model.Status) ([]model.KindCount, error) {
	return nil, nil
}
