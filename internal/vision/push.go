package vision

import (
	"context"
	"sync"

	"github.com/betbot/bjadvisor/internal/domain"
)

// PushSource 由外部（/ws/frames）推入帧。缓冲满时丢弃最旧的帧，实时建议只关心最新画面
type PushSource struct {
	mu      sync.Mutex
	ch      chan domain.Frame
	done    chan struct{}
	closed  bool
	dropped uint64
}

// NewPushSource buffer 为待处理帧上限
func NewPushSource(buffer int) *PushSource {
	if buffer <= 0 {
		buffer = 4
	}
	return &PushSource{ch: make(chan domain.Frame, buffer), done: make(chan struct{})}
}

// Push 推入一帧，不阻塞
func (p *PushSource) Push(f domain.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSourceClosed
	}
	for {
		select {
		case p.ch <- f:
			return nil
		default:
		}
		select {
		case <-p.ch:
			p.dropped++
		default:
		}
	}
}

// Dropped 因缓冲满被丢弃的帧数
func (p *PushSource) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Next 实现 Source；关闭后先取完缓冲中的帧
func (p *PushSource) Next(ctx context.Context) (domain.Frame, error) {
	select {
	case f := <-p.ch:
		return f, nil
	default:
	}
	select {
	case <-ctx.Done():
		return domain.Frame{}, ctx.Err()
	case f := <-p.ch:
		return f, nil
	case <-p.done:
		select {
		case f := <-p.ch:
			return f, nil
		default:
			return domain.Frame{}, ErrSourceClosed
		}
	}
}

// Close 之后 Push 返回 ErrSourceClosed
func (p *PushSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	return nil
}
