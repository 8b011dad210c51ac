package common

import (
	"sync"
	"time"
)

// Clock 返回当前时间；测试中替换为可控时钟
type Clock func() time.Time

// SystemClock 使用 time.Now
func SystemClock() time.Time { return time.Now() }

// OrSystem nil 时退回 SystemClock
func (c Clock) OrSystem() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// Debouncer 时间闸门：
// - Ready 判断距离上次 Mark 是否已超过 interval（不修改状态）
// - Mark 记录一次成功动作的时间
//
// 从未 Mark 过时 Ready 总是返回 true。
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clock    Clock
}

// NewDebouncer 创建闸门，clock 为 nil 时使用系统时钟
func NewDebouncer(interval time.Duration, clock Clock) *Debouncer {
	return &Debouncer{interval: interval, clock: clock.OrSystem()}
}

// Interval 当前间隔
func (d *Debouncer) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// Last 上次 Mark 的时间（零值表示从未 Mark）
func (d *Debouncer) Last() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Ready 是否可以再次执行，同时返回距离上次 Mark 的时长
func (d *Debouncer) Ready() (ready bool, since time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.interval <= 0 || d.last.IsZero() {
		return true, d.interval
	}
	since = d.clock().Sub(d.last)
	return since >= d.interval, since
}

// Mark 记录当前时间为最近一次执行时间
func (d *Debouncer) Mark() {
	d.mu.Lock()
	d.last = d.clock()
	d.mu.Unlock()
}

// TryMark Ready 时立即 Mark 并返回 true，用于限频类告警
func (d *Debouncer) TryMark() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	if d.interval > 0 && !d.last.IsZero() && now.Sub(d.last) < d.interval {
		return false
	}
	d.last = now
	return true
}

// Reset 清空记录，下一次 Ready 必然为 true
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.last = time.Time{}
	d.mu.Unlock()
}
