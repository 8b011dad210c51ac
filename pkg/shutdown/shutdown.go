package shutdown

import (
	"context"
	"sync"

	"github.com/betbot/bjadvisor/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type entry struct {
	name    string
	handler Handler
}

// Manager 优雅关闭管理器。回调按注册的逆序串行执行：
// 先停止输入（HTTP、视觉源），最后关闭存储。
type Manager struct {
	callbacks []entry
	mu        sync.Mutex
	once      sync.Once
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, entry{name: name, handler: handler})
}

// Shutdown 执行所有关闭回调（阻塞调用，只执行一次）。
// ctx 应该是一个带超时的 context，超时后剩余回调不再执行。返回失败的回调数。
func (m *Manager) Shutdown(ctx context.Context) (failed int) {
	m.once.Do(func() {
		m.mu.Lock()
		callbacks := append([]entry(nil), m.callbacks...)
		m.mu.Unlock()

		if len(callbacks) == 0 {
			logger.Info("没有注册的关闭回调")
			return
		}
		logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

		for i := len(callbacks) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				logger.Warnf("关闭超时，跳过剩余 %d 个回调: %v", i+1, err)
				failed += i + 1
				return
			}
			cb := callbacks[i]
			if err := cb.handler(ctx); err != nil {
				logger.Errorf("关闭 %s 失败: %v", cb.name, err)
				failed++
				continue
			}
			logger.Infof("已关闭 %s", cb.name)
		}
		logger.Info("所有关闭回调已完成")
	})
	return failed
}
