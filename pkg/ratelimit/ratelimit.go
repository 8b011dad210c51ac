package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket 令牌桶速率限制器：容量 capacity，每秒补充 rate 个令牌（可为小数）
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	rate     float64
	last     time.Time
	now      func() time.Time
}

// NewTokenBucket 创建令牌桶，初始为满
func NewTokenBucket(capacity int, rate float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		rate:     rate,
		last:     time.Now(),
		now:      time.Now,
	}
}

// WithClock 替换时钟（测试用），并以新时钟重置补充起点
func (tb *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.now = now
	tb.last = now()
	return tb
}

// refill 按经过时间补充令牌
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.last)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}

// Allow 取一个令牌；没有令牌时返回 false，不等待
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 阻塞直到取得令牌或 ctx 取消
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		wait := time.Second
		if tb.rate > 0 {
			wait = time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		}
		tb.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Remaining 当前可用的整数令牌数
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}
