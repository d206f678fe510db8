package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"headless-pro/pkg/config"
)

// ServerManager 统一服务器管理器
type ServerManager struct {
	config      *config.Config
	logger      kratoslog.Logger
	httpServer  HTTPServer
	grpcServer  GRPCServer
	grpcOptions []grpc.ServerOption
	servers     []Server
	started     []Server
	mu          sync.Mutex
}

// Server 通用服务器接口，Start 不阻塞
type Server interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NewServerManager 创建服务器管理器
func NewServerManager(cfg *config.Config, logger kratoslog.Logger) *ServerManager {
	return &ServerManager{
		config:  cfg,
		logger:  logger,
		servers: make([]Server, 0),
	}
}

// SetGRPCOptions 设置gRPC服务器选项，需在EnableGRPC之前调用
func (sm *ServerManager) SetGRPCOptions(opts ...grpc.ServerOption) {
	sm.grpcOptions = opts
}

// EnableHTTP 启用HTTP服务器
func (sm *ServerManager) EnableHTTP() HTTPServer {
	if sm.httpServer == nil {
		sm.httpServer = NewHTTPServerWrapper(sm.config, sm.logger)
		sm.AddServer(sm.httpServer)
	}
	return sm.httpServer
}

// EnableGRPC 启用gRPC服务器
func (sm *ServerManager) EnableGRPC() GRPCServer {
	if sm.grpcServer == nil {
		sm.grpcServer = NewGRPCServerWrapper(sm.config, sm.logger, sm.grpcOptions...)
		sm.AddServer(sm.grpcServer)
	}
	return sm.grpcServer
}

// RegisterHTTPRoutes 注册HTTP路由
func (sm *ServerManager) RegisterHTTPRoutes(registerFunc func(*gin.Engine)) error {
	if sm.httpServer == nil {
		return fmt.Errorf("HTTP server not enabled")
	}
	sm.httpServer.RegisterRoutes(registerFunc)
	return nil
}

// RegisterGRPCService 注册gRPC服务
func (sm *ServerManager) RegisterGRPCService(registerFunc func(*grpc.Server)) error {
	if sm.grpcServer == nil {
		return fmt.Errorf("gRPC server not enabled")
	}
	sm.grpcServer.RegisterService(registerFunc)
	return nil
}

// AddServer 添加服务器到管理列表
func (sm *ServerManager) AddServer(server Server) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.servers = append(sm.servers, server)
}

// StartAll 依次启动所有服务器，任一失败则停止已启动的
func (sm *ServerManager) StartAll(ctx context.Context) error {
	sm.mu.Lock()
	servers := append([]Server(nil), sm.servers...)
	sm.mu.Unlock()

	for _, server := range servers {
		if err := server.Start(ctx); err != nil {
			sm.logger.Log(kratoslog.LevelError, "msg", "Server start failed", "server", server.Name(), "error", err)
			_ = sm.StopAll(ctx)
			return fmt.Errorf("start %s server: %w", server.Name(), err)
		}
		sm.mu.Lock()
		sm.started = append(sm.started, server)
		sm.mu.Unlock()
	}

	sm.logger.Log(kratoslog.LevelInfo, "msg", "All servers started", "count", len(servers))
	return nil
}

// StopAll 并行停止已启动的服务器
func (sm *ServerManager) StopAll(ctx context.Context) error {
	sm.mu.Lock()
	started := sm.started
	sm.started = nil
	sm.mu.Unlock()

	var g errgroup.Group
	for _, server := range started {
		server := server
		g.Go(func() error {
			if err := server.Stop(ctx); err != nil {
				return fmt.Errorf("stop %s server: %w", server.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
