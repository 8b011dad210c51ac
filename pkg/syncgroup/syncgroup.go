package syncgroup

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "syncgroup")

// SyncGroup 包装 sync.WaitGroup：Go 自动 Add/Done，panic 记录日志而不是让进程退出
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	running map[string]int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{running: make(map[string]int)}
}

// Go 以 name 启动一个 goroutine
func (g *SyncGroup) Go(name string, fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.running[name]++
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("goroutine %s panic: %v", name, r)
			}
			g.mu.Lock()
			if g.running[name]--; g.running[name] <= 0 {
				delete(g.running, name)
			}
			g.mu.Unlock()
			g.wg.Done()
		}()
		fn()
	}()
}

// Running 仍在运行的 goroutine 名称
func (g *SyncGroup) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.running))
	for name := range g.running {
		out = append(out, name)
	}
	return out
}

// Wait 等待所有 goroutine 完成
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitTimeout 最多等待 d；超时返回 false 并记录仍在运行的 goroutine
func (g *SyncGroup) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		log.Warnf("等待超时，仍在运行: %v", g.Running())
		return false
	}
}
