package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"headless-pro/pkg/logger"
)

func TestRecoveryHidesPanicDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(logger.NewNopLogger()))
	r.GET("/boom", func(c *gin.Context) {
		panic("database password leaked")
	})

	w := serve(r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
}
