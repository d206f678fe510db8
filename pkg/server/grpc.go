package server

import (
	"context"
	"net"

	kratoslog "github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"headless-pro/pkg/config"
)

// GRPCServer gRPC服务器接口
type GRPCServer interface {
	Server
	GetServer() *grpc.Server
	RegisterService(registerFunc func(*grpc.Server))
}

// GRPCServerWrapper gRPC服务器包装器
type GRPCServerWrapper struct {
	server   *grpc.Server
	health   *health.Server
	addr     string
	listener net.Listener
	logger   kratoslog.Logger
}

// NewGRPCServerWrapper 创建gRPC服务器包装器，默认注册标准健康检查服务
func NewGRPCServerWrapper(c *config.Config, logger kratoslog.Logger, opts ...grpc.ServerOption) *GRPCServerWrapper {
	server := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	if c.IsDebug() {
		reflection.Register(server)
	}

	return &GRPCServerWrapper{
		server: server,
		health: healthServer,
		addr:   c.Server.GRPC.Addr,
		logger: logger,
	}
}

// Name 服务器名称
func (w *GRPCServerWrapper) Name() string {
	return "grpc"
}

// GetServer 获取gRPC服务器
func (w *GRPCServerWrapper) GetServer() *grpc.Server {
	return w.server
}

// RegisterService 注册服务
func (w *GRPCServerWrapper) RegisterService(registerFunc func(*grpc.Server)) {
	registerFunc(w.server)
}

// SetServingStatus 设置某个服务的健康状态
func (w *GRPCServerWrapper) SetServingStatus(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	w.health.SetServingStatus(service, status)
}

// Start 监听端口并在后台提供服务
func (w *GRPCServerWrapper) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", w.addr)
	if err != nil {
		return err
	}
	w.listener = lis
	w.logger.Log(kratoslog.LevelInfo, "msg", "gRPC server listening", "addr", lis.Addr().String())

	w.SetServingStatus("", true)
	go func() {
		if err := w.server.Serve(lis); err != nil {
			w.logger.Log(kratoslog.LevelError, "msg", "gRPC server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr 实际监听地址
func (w *GRPCServerWrapper) Addr() string {
	if w.listener == nil {
		return w.addr
	}
	return w.listener.Addr().String()
}

// Stop 优雅停止，超时后强制停止
func (w *GRPCServerWrapper) Stop(ctx context.Context) error {
	w.logger.Log(kratoslog.LevelInfo, "msg", "gRPC server stopping")
	w.health.Shutdown()

	done := make(chan struct{})
	go func() {
		w.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.server.Stop()
		<-done
		return ctx.Err()
	}
}
