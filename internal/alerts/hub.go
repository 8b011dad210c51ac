package alerts

import (
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
)

// Event 推送给订阅者的告警事件
type Event struct {
	Seq     uint64           `json:"seq"`
	Alert   domain.AlertType `json:"alert"`
	Pattern Pattern          `json:"pattern"`
	At      time.Time        `json:"at"`
}

// Hub 把告警广播给订阅者（/ws/alerts 的每个连接一个订阅）。
// 订阅者消费过慢时丢弃该事件，不阻塞告警线程。
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	seq    uint64
	clock  common.Clock
	buffer int
}

// Subscription 一个订阅
type Subscription struct {
	C    <-chan Event
	ch   chan Event
	hub  *Hub
	once sync.Once
}

// NewHub 创建广播器，buffer 为每个订阅者的缓冲
func NewHub(buffer int, clock common.Clock) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[*Subscription]struct{}), clock: clock.OrSystem(), buffer: buffer}
}

// Subscribe 新建订阅
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close 取消订阅并关闭通道
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Subscribers 当前订阅数
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Play 实现 ports.AlertSink，Stand 的静音告警也会推送，前端可显示“STAND”
func (h *Hub) Play(a domain.AlertType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	ev := Event{Seq: h.seq, Alert: a, Pattern: PatternFor(a), At: h.clock()}
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			log.Debugf("订阅者缓冲已满，丢弃告警 #%d", ev.Seq)
		}
	}
}
