package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"headless-pro/pkg/config"
)

// NewGinEngine 创建Gin引擎，附带根路径健康检查
func NewGinEngine(debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	return r
}

// HTTPServer HTTP服务器接口
type HTTPServer interface {
	Server
	GetEngine() *gin.Engine
	RegisterRoutes(registerFunc func(*gin.Engine))
}

// HTTPServerWrapper Gin HTTP服务器包装器
type HTTPServerWrapper struct {
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	logger   kratoslog.Logger
}

// NewHTTPServerWrapper 创建HTTP服务器包装器
func NewHTTPServerWrapper(c *config.Config, logger kratoslog.Logger) *HTTPServerWrapper {
	engine := NewGinEngine(c.IsDebug())

	timeout := c.Server.HTTP.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	server := &http.Server{
		Addr:              c.Server.HTTP.Addr,
		Handler:           engine,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	return &HTTPServerWrapper{
		engine: engine,
		server: server,
		logger: logger,
	}
}

// Name 服务器名称
func (w *HTTPServerWrapper) Name() string {
	return "http"
}

// GetEngine 获取Gin引擎
func (w *HTTPServerWrapper) GetEngine() *gin.Engine {
	return w.engine
}

// RegisterRoutes 注册路由
func (w *HTTPServerWrapper) RegisterRoutes(registerFunc func(*gin.Engine)) {
	registerFunc(w.engine)
}

// Start 监听端口并在后台提供服务，端口占用等错误同步返回
func (w *HTTPServerWrapper) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return err
	}
	w.listener = lis
	w.logger.Log(kratoslog.LevelInfo, "msg", "HTTP server listening", "addr", lis.Addr().String())

	go func() {
		if err := w.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Log(kratoslog.LevelError, "msg", "HTTP server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr 实际监听地址
func (w *HTTPServerWrapper) Addr() string {
	if w.listener == nil {
		return w.server.Addr
	}
	return w.listener.Addr().String()
}

// Stop 优雅停止服务器
func (w *HTTPServerWrapper) Stop(ctx context.Context) error {
	w.logger.Log(kratoslog.LevelInfo, "msg", "HTTP server stopping")
	return w.server.Shutdown(ctx)
}
