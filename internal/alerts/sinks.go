package alerts

import (
	"io"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/betbot/bjadvisor/internal/ports"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "alerts")

// LogSink 只写日志
type LogSink struct{}

// Play 实现 ports.AlertSink
func (LogSink) Play(a domain.AlertType) {
	if a == domain.AlertNone {
		log.Debug("告警: stand（静音）")
		return
	}
	p := PatternFor(a)
	log.WithFields(logrus.Fields{"alert": a.String(), "beeps": p.Beeps, "tones": len(p.Tones)}).Info("告警")
}

// FanOut 依次转发给多个 sink
type FanOut []ports.AlertSink

// Play 实现 ports.AlertSink
func (f FanOut) Play(a domain.AlertType) {
	for _, s := range f {
		if s != nil {
			s.Play(a)
		}
	}
}

// TerminalSink 用终端响铃（BEL）近似播放节奏。
// 播放在后台 goroutine 中进行；正在播放时到来的告警替换掉排队中的旧告警，保证不阻塞调用线程。
type TerminalSink struct {
	out   io.Writer
	sleep func(time.Duration)

	queue chan domain.AlertType
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewTerminalSink 写到 out（通常是 os.Stderr），sleep 为 nil 时使用 time.Sleep
func NewTerminalSink(out io.Writer, sleep func(time.Duration)) *TerminalSink {
	if sleep == nil {
		sleep = time.Sleep
	}
	t := &TerminalSink{
		out:   out,
		sleep: sleep,
		queue: make(chan domain.AlertType, 1),
		done:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

// Play 实现 ports.AlertSink
func (t *TerminalSink) Play(a domain.AlertType) {
	if PatternFor(a).Silent() {
		return
	}
	for {
		select {
		case t.queue <- a:
			return
		case <-t.done:
			return
		default:
		}
		// 队列满：丢弃旧的
		select {
		case old := <-t.queue:
			log.Debugf("丢弃未播放的告警 %s", old)
		default:
		}
	}
}

func (t *TerminalSink) loop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case a := <-t.queue:
			t.render(PatternFor(a))
		}
	}
}

func (t *TerminalSink) render(p Pattern) {
	if len(p.Tones) > 0 {
		for i, tone := range p.Tones {
			if i > 0 {
				t.sleep(p.Gap)
			}
			t.bell()
			t.sleep(tone.Duration)
		}
		return
	}
	for i := 0; i < p.Beeps; i++ {
		if i > 0 {
			t.sleep(p.Pause)
		}
		t.bell()
		t.sleep(p.Beep)
	}
}

func (t *TerminalSink) bell() {
	if _, err := io.WriteString(t.out, "\a"); err != nil {
		log.Warnf("终端响铃失败: %v", err)
	}
}

// Close 停止后台播放
func (t *TerminalSink) Close() error {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
	return nil
}
