package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc"

	"headless-pro/pkg/config"
	"headless-pro/pkg/database"
	"headless-pro/pkg/kafka"
	"headless-pro/pkg/lifecycle"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/middleware"
	"headless-pro/pkg/redis"
	"headless-pro/pkg/telemetry"
)

// 存储与传输选项
const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
	SearchBackendStore     = "store"
	SearchBackendElastic   = "elasticsearch"
)

// Application 应用程序框架，按配置装配基础设施
type Application struct {
	serviceName   string
	config        *config.Config
	logger        kratoslog.Logger
	appLogger     logger.Logger
	serverManager *ServerManager
	lifecycle     *lifecycle.LifecycleManager

	// 基础设施组件，未启用的为nil
	postgreSQL    *database.PostgreSQL
	mongoDB       *database.MongoDB
	elasticSearch *database.ElasticSearch
	redisClient   *redis.RedisClient
	kafkaProducer *kafka.Producer

	loggingMiddleware *middleware.LoggingMiddleware
	otelMiddleware    *middleware.OTelMiddleware

	httpRouteRegister   func(*gin.Engine)
	grpcServiceRegister func(*grpc.Server)
	hooks               []lifecycle.Hook
}

// NewApplication 创建应用程序并连接配置中启用的基础设施
func NewApplication(cfg *config.Config) (*Application, error) {
	appLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	kratosLogger := kratoslog.With(logger.NewKratosLogger(appLogger),
		"service.name", cfg.App.Name,
		"service.version", cfg.App.Version,
	)

	serverManager := NewServerManager(cfg, kratosLogger)
	otelMiddleware := middleware.NewOTelMiddleware(cfg.App.Name)
	loggingMiddleware := middleware.NewLoggingMiddleware(kratosLogger)
	serverManager.SetGRPCOptions(grpc.ChainUnaryInterceptor(
		middleware.GRPCRecovery(appLogger),
		otelMiddleware.GRPCUnaryServerInterceptor(),
		loggingMiddleware.GRPCLogging(),
	))

	lm := lifecycle.NewLifecycleManager(kratosLogger)
	if cfg.Server.ShutdownTimeout > 0 {
		lm.SetStopTimeout(cfg.Server.ShutdownTimeout)
	}

	app := &Application{
		serviceName:       cfg.App.Name,
		config:            cfg,
		logger:            kratosLogger,
		appLogger:         appLogger,
		serverManager:     serverManager,
		lifecycle:         lm,
		loggingMiddleware: loggingMiddleware,
		otelMiddleware:    otelMiddleware,
	}

	if err := app.initInfrastructure(); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

// initInfrastructure 初始化基础设施组件
func (app *Application) initInfrastructure() error {
	cfg := app.config
	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		if err := telemetry.InitGlobal(telemetry.FromAppConfig(cfg), app.appLogger); err != nil {
			return fmt.Errorf("failed to init telemetry: %w", err)
		}
	}

	if cfg.Storage.Backend == StorageBackendPostgres {
		pg, err := database.NewPostgreSQL(cfg.Database.PostgreSQL.DSN, cfg.Database.PostgreSQL.DBName)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		app.postgreSQL = pg
	}

	if cfg.Storage.Search == SearchBackendElastic {
		es, err := database.NewElasticSearch(cfg.Elasticsearch, app.appLogger)
		if err != nil {
			return err
		}
		app.elasticSearch = es
	}

	if cfg.Storage.ContactArchive {
		mongoDB, err := database.NewMongoDB(cfg.Database.MongoDB)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		app.mongoDB = mongoDB
	}

	if cfg.Cache.Enabled {
		client := redis.NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx); err != nil {
			// 缓存是可选能力，连接失败时降级为不缓存
			app.appLogger.Warn(ctx, "Redis不可用，响应缓存已关闭", logger.F("error", err.Error()))
			_ = client.Close()
		} else {
			app.redisClient = client
		}
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.InitProducer(cfg.Kafka.Brokers, app.appLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to Kafka: %w", err)
		}
		app.kafkaProducer = producer
	}

	return nil
}

// closeInfrastructure 关闭所有已连接的基础设施
func (app *Application) closeInfrastructure() {
	ctx := context.Background()
	closers := []struct {
		name  string
		close func() error
	}{
		{"kafka", func() error { return closeIf(app.kafkaProducer != nil, app.kafkaProducer.Close) }},
		{"redis", func() error { return closeIf(app.redisClient != nil, app.redisClient.Close) }},
		{"mongodb", func() error { return closeIf(app.mongoDB != nil, app.mongoDB.Close) }},
		{"postgresql", func() error { return closeIf(app.postgreSQL != nil, app.postgreSQL.Close) }},
		{"telemetry", func() error { return telemetry.ShutdownGlobal(ctx) }},
	}
	for _, c := range closers {
		if err := c.close(); err != nil {
			app.logger.Log(kratoslog.LevelError, "msg", "Failed to close "+c.name, "error", err)
		}
	}
}

func closeIf(enabled bool, fn func() error) error {
	if !enabled {
		return nil
	}
	return fn()
}

// EnableHTTP 启用HTTP服务器并挂载通用中间件
func (app *Application) EnableHTTP() HTTPServer {
	httpServer := app.serverManager.EnableHTTP()

	httpServer.RegisterRoutes(func(engine *gin.Engine) {
		engine.Use(middleware.Recovery(app.appLogger))
		engine.Use(app.otelMiddleware.GinMiddleware())
		engine.Use(app.loggingMiddleware.GinLogging())
	})

	return httpServer
}

// EnableGRPC 启用gRPC服务器
func (app *Application) EnableGRPC() GRPCServer {
	return app.serverManager.EnableGRPC()
}

// RegisterHTTPRoutes 注册HTTP路由
func (app *Application) RegisterHTTPRoutes(registerFunc func(*gin.Engine)) {
	app.httpRouteRegister = registerFunc
}

// RegisterGRPCService 注册gRPC服务
func (app *Application) RegisterGRPCService(registerFunc func(*grpc.Server)) {
	app.grpcServiceRegister = registerFunc
}

// AddHook 注册业务钩子（如Kafka消费者）
func (app *Application) AddHook(hook lifecycle.Hook) {
	app.hooks = append(app.hooks, hook)
}

// GetPostgreSQL 获取PostgreSQL连接
func (app *Application) GetPostgreSQL() *database.PostgreSQL {
	return app.postgreSQL
}

// GetMongoDB 获取MongoDB连接
func (app *Application) GetMongoDB() *database.MongoDB {
	return app.mongoDB
}

// GetElasticSearch 获取ElasticSearch客户端
func (app *Application) GetElasticSearch() *database.ElasticSearch {
	return app.elasticSearch
}

// GetRedisClient 获取Redis客户端
func (app *Application) GetRedisClient() *redis.RedisClient {
	return app.redisClient
}

// GetKafkaProducer 获取Kafka生产者
func (app *Application) GetKafkaProducer() *kafka.Producer {
	return app.kafkaProducer
}

// GetLogger 获取业务日志器
func (app *Application) GetLogger() logger.Logger {
	return app.appLogger
}

// GetConfig 获取配置
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Close 不启动服务时释放基础设施（CLI子命令使用）
func (app *Application) Close() {
	app.closeInfrastructure()
}

// Run 运行应用程序，阻塞到收到退出信号
func (app *Application) Run() error {
	if err := app.registerLifecycleHooks(); err != nil {
		return err
	}

	if err := app.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle: %w", err)
	}

	app.lifecycle.Wait()
	return nil
}

// registerLifecycleHooks 注册生命周期钩子
func (app *Application) registerLifecycleHooks() error {
	if app.httpRouteRegister != nil {
		if err := app.serverManager.RegisterHTTPRoutes(app.httpRouteRegister); err != nil {
			return err
		}
	}
	if app.grpcServiceRegister != nil {
		if err := app.serverManager.RegisterGRPCService(app.grpcServiceRegister); err != nil {
			return err
		}
	}

	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "infrastructure",
		Priority: lifecycle.PriorityInfrastructure,
		OnStop: func(ctx context.Context) error {
			app.closeInfrastructure()
			return nil
		},
	})

	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "servers",
		Priority: lifecycle.PriorityServer,
		OnStart: func(ctx context.Context) error {
			return app.serverManager.StartAll(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return app.serverManager.StopAll(ctx)
		},
	})

	for _, hook := range app.hooks {
		app.lifecycle.AddHook(hook)
	}
	return nil
}
