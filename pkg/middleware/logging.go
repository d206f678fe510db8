package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingMiddleware 日志中间件
type LoggingMiddleware struct {
	logger kratoslog.Logger
}

// NewLoggingMiddleware 创建日志中间件
func NewLoggingMiddleware(logger kratoslog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger,
	}
}

// GinLogging Gin访问日志
func (lm *LoggingMiddleware) GinLogging() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
		Formatter: func(param gin.LogFormatterParams) string {
			level := kratoslog.LevelInfo
			if param.StatusCode >= 500 {
				level = kratoslog.LevelError
			}
			lm.logger.Log(level,
				"msg", "HTTP request",
				"method", param.Method,
				"path", param.Path,
				"status", param.StatusCode,
				"latency", param.Latency.String(),
				"client_ip", param.ClientIP,
				"user_agent", param.Request.UserAgent(),
				"cache", param.Keys[CacheStatusKey],
				"error", param.ErrorMessage,
			)
			return ""
		},
	})
}

// GRPCLogging gRPC日志拦截器
func (lm *LoggingMiddleware) GRPCLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		st := status.Convert(err)
		if err != nil {
			lm.logger.Log(kratoslog.LevelError,
				"msg", "gRPC request completed with error",
				"method", info.FullMethod,
				"duration", time.Since(start).String(),
				"code", st.Code().String(),
				"error", err.Error(),
			)
		} else {
			lm.logger.Log(kratoslog.LevelDebug,
				"msg", "gRPC request completed",
				"method", info.FullMethod,
				"duration", time.Since(start).String(),
			)
		}

		return resp, err
	}
}
