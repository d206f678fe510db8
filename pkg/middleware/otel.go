package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	tracecontext "headless-pro/pkg/context"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// OTelMiddleware OpenTelemetry中间件配置
type OTelMiddleware struct {
	serviceName string
}

// NewOTelMiddleware 创建OpenTelemetry中间件
func NewOTelMiddleware(serviceName string) *OTelMiddleware {
	return &OTelMiddleware{serviceName: serviceName}
}

// GinMiddleware 返回Gin的OpenTelemetry中间件，并把请求ID写回响应头
func (m *OTelMiddleware) GinMiddleware() gin.HandlerFunc {
	base := otelgin.Middleware(m.serviceName)

	return func(c *gin.Context) {
		// otelgin 内部会调用 c.Next()，业务信息需在它之前注入
		ctx := m.enhanceContext(c.Request.Context(), c)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, tracecontext.GetRequestID(ctx))

		base(c)
	}
}

// enhanceContext 增强context，添加业务追踪信息
func (m *OTelMiddleware) enhanceContext(ctx context.Context, c *gin.Context) context.Context {
	if traceID := c.GetHeader("X-Trace-ID"); traceID != "" {
		ctx = tracecontext.WithTraceID(ctx, traceID)
	}
	ctx = tracecontext.WithRequestID(ctx, c.GetHeader(RequestIDHeader))
	ctx = tracecontext.WithServiceName(ctx, m.serviceName)
	ctx = tracecontext.WithClientInfo(ctx, c.ClientIP(), c.GetHeader("User-Agent"))

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("http.client_ip", c.ClientIP()),
		)
	}

	return ctx
}

// GRPCUnaryServerInterceptor 返回gRPC一元服务器拦截器
func (m *OTelMiddleware) GRPCUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if traceIDs := md.Get("x-trace-id"); len(traceIDs) > 0 {
				ctx = tracecontext.WithTraceID(ctx, traceIDs[0])
			}
			if requestIDs := md.Get("x-request-id"); len(requestIDs) > 0 {
				ctx = tracecontext.WithRequestID(ctx, requestIDs[0])
			}
		}
		ctx = tracecontext.WithServiceName(ctx, m.serviceName)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("rpc.method", info.FullMethod))
		}

		return handler(ctx, req)
	}
}
