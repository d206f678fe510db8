package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	kratoslog "github.com/go-kratos/kratos/v2/log"
)

// 钩子优先级分段
const (
	PriorityInfrastructure = 0   // 数据库、Redis、Kafka、ES连接
	PriorityServer         = 100 // HTTP、gRPC服务器
	PriorityWorker         = 200 // 后台消费者
)

// DefaultStopTimeout 停止钩子的总超时
const DefaultStopTimeout = 30 * time.Second

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	logger      kratoslog.Logger
	hooks       []Hook
	started     int
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// Hook 生命周期钩子
type Hook struct {
	Name     string
	OnStart  func(context.Context) error
	OnStop   func(context.Context) error
	Priority int // 数字越小越先启动、越后停止
}

// NewLifecycleManager 创建生命周期管理器
func NewLifecycleManager(logger kratoslog.Logger) *LifecycleManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &LifecycleManager{
		logger:      logger,
		hooks:       make([]Hook, 0),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopTimeout: DefaultStopTimeout,
	}
}

// SetStopTimeout 设置停止超时
func (lm *LifecycleManager) SetStopTimeout(timeout time.Duration) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.stopTimeout = timeout
}

// AddHook 添加生命周期钩子，同优先级保持注册顺序
func (lm *LifecycleManager) AddHook(hook Hook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.hooks = append(lm.hooks, hook)
	sort.SliceStable(lm.hooks, func(i, j int) bool {
		return lm.hooks[i].Priority < lm.hooks[j].Priority
	})
}

// Start 按优先级启动所有钩子，失败时回滚已启动的钩子
func (lm *LifecycleManager) Start() error {
	lm.mu.Lock()
	hooks := append([]Hook(nil), lm.hooks...)
	lm.mu.Unlock()

	lm.logger.Log(kratoslog.LevelInfo, "msg", "Starting lifecycle hooks", "count", len(hooks))

	for i, hook := range hooks {
		if hook.OnStart != nil {
			if err := hook.OnStart(lm.ctx); err != nil {
				lm.logger.Log(kratoslog.LevelError, "msg", "Hook start failed", "name", hook.Name, "error", err)
				lm.mu.Lock()
				lm.started = i
				lm.mu.Unlock()
				_ = lm.Stop()
				return err
			}
			lm.logger.Log(kratoslog.LevelInfo, "msg", "Hook started", "name", hook.Name)
		}
		lm.mu.Lock()
		lm.started = i + 1
		lm.mu.Unlock()
	}

	lm.logger.Log(kratoslog.LevelInfo, "msg", "All lifecycle hooks started")
	return nil
}

// Stop 反向停止已启动的钩子，只执行一次
func (lm *LifecycleManager) Stop() error {
	var stopErr error

	lm.stopOnce.Do(func() {
		lm.mu.Lock()
		hooks := append([]Hook(nil), lm.hooks[:lm.started]...)
		timeout := lm.stopTimeout
		lm.mu.Unlock()

		lm.logger.Log(kratoslog.LevelInfo, "msg", "Stopping lifecycle hooks")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		for i := len(hooks) - 1; i >= 0; i-- {
			hook := hooks[i]
			if hook.OnStop == nil {
				continue
			}
			if err := hook.OnStop(ctx); err != nil {
				lm.logger.Log(kratoslog.LevelError, "msg", "Hook stop failed", "name", hook.Name, "error", err)
				if stopErr == nil {
					stopErr = err
				}
				continue
			}
			lm.logger.Log(kratoslog.LevelInfo, "msg", "Hook stopped", "name", hook.Name)
		}

		lm.cancel()
		close(lm.done)

		lm.logger.Log(kratoslog.LevelInfo, "msg", "All lifecycle hooks stopped")
	})

	return stopErr
}

// Wait 阻塞直到收到退出信号或被主动停止
func (lm *LifecycleManager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		lm.logger.Log(kratoslog.LevelInfo, "msg", "Received signal", "signal", sig.String())
		_ = lm.Stop()
	case <-lm.done:
	}
}

// Context 获取生命周期上下文，Stop后被取消
func (lm *LifecycleManager) Context() context.Context {
	return lm.ctx
}

// Done 获取完成通道
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.done
}
