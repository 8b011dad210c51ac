package common

import (
	"sync"
	"time"
)

// FakeClock 手动推进的时钟，供测试和回放使用
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock 从 start 开始计时
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now 当前时间，可直接作为 Clock 传入
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 时间前进 d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set 直接设置时间（回放时对齐帧时间戳）
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
