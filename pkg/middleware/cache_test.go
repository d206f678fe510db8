package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headless-pro/pkg/logger"
	"headless-pro/pkg/redis"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	}
	return nil
}

func newCachedEngine(store ResponseStore, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ResponseCache(store, time.Minute, logger.NewNopLogger()))
	r.GET("/search", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"query": c.Query("query")})
	})
	r.GET("/missing", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusNotFound, gin.H{"code": 404})
	})
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestResponseCacheHitAfterMiss(t *testing.T) {
	calls := 0
	r := newCachedEngine(newMemoryStore(), &calls)

	first := serve(r, http.MethodGet, "/search?query=go")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, CacheMiss, first.Header().Get(CacheHeader))

	second := serve(r, http.MethodGet, "/search?query=go")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, CacheHit, second.Header().Get(CacheHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	other := serve(r, http.MethodGet, "/search?query=rust")
	assert.Equal(t, CacheMiss, other.Header().Get(CacheHeader))
	assert.Equal(t, 2, calls)
}

func TestResponseCacheSkipsErrorsAndFailures(t *testing.T) {
	calls := 0
	store := newMemoryStore()
	r := newCachedEngine(store, &calls)

	serve(r, http.MethodGet, "/missing")
	serve(r, http.MethodGet, "/missing")
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)

	store.failGet = true
	w := serve(r, http.MethodGet, "/search?query=go")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, calls)
}

func TestCacheKeyVariesByQuery(t *testing.T) {
	a := httptest.NewRequest(http.MethodGet, "/search?query=a", nil)
	b := httptest.NewRequest(http.MethodGet, "/search?query=b", nil)
	assert.NotEqual(t, CacheKey(a), CacheKey(b))
	assert.Equal(t, CacheKey(a), CacheKey(httptest.NewRequest(http.MethodGet, "/search?query=a", nil)))
}
