package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 上下文键类型
type contextKey string

const (
	// 业务相关的上下文键
	TraceIDKey   contextKey = "trace_id"
	RequestIDKey contextKey = "request_id"
	ContentIDKey contextKey = "content_id"

	// 服务相关的上下文键
	ServiceNameKey contextKey = "service_name"
	ClientIPKey    contextKey = "client_ip"
	UserAgentKey   contextKey = "user_agent"
)

// WithTraceID 在context中设置TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}

	// 同时设置到OpenTelemetry span中
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("trace.id", traceID))
	}

	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID 从context中获取TraceID
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	// 优先从OpenTelemetry span中获取
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithRequestID 在context中设置RequestID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = GenerateRequestID()
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("request.id", requestID))
	}

	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID 从context中获取RequestID
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithContentID 在context中设置当前处理的内容ID
func WithContentID(ctx context.Context, contentID int64) context.Context {
	if contentID <= 0 {
		return ctx
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("content.id", contentID))
	}

	return context.WithValue(ctx, ContentIDKey, contentID)
}

// GetContentID 从context中获取内容ID
func GetContentID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if contentID, ok := ctx.Value(ContentIDKey).(int64); ok {
		return contentID
	}
	return 0
}

// WithServiceName 在context中设置服务名
func WithServiceName(ctx context.Context, serviceName string) context.Context {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("service.name", serviceName))
	}
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

// GetServiceName 从context中获取服务名
func GetServiceName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

// WithClientInfo 在context中设置客户端信息
func WithClientInfo(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ClientIPKey, clientIP)
	ctx = context.WithValue(ctx, UserAgentKey, userAgent)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("client.ip", clientIP),
			attribute.String("client.user_agent", userAgent),
		)
	}

	return ctx
}

// GenerateTraceID 生成TraceID
func GenerateTraceID() string {
	return uuid.New().String()
}

// GenerateRequestID 生成RequestID
func GenerateRequestID() string {
	return uuid.New().String()
}
