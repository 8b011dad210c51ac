package vision

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/pkg/errors"
)

// maxReplayGap 回放时两帧之间最长等待，录制中的长时间空档会被压缩
const maxReplayGap = 5 * time.Second

// ReplayOptions 回放参数
type ReplayOptions struct {
	Realtime bool // 按帧时间戳的间隔回放
	Loop     bool // 读完后从头再来（只对文件有效）
	// Sleep 测试注入；nil 时使用可被 ctx 打断的 timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// ReplaySource 逐行读取 JSONL 录制文件，一行一帧；空行与 # 开头的行忽略
type ReplaySource struct {
	mu   sync.Mutex
	opts ReplayOptions
	path string

	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
	last    time.Time
	closed  bool
}

// OpenReplay 打开录制文件
func OpenReplay(path string, opts ReplayOptions) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open replay %s", path)
	}
	s := NewReplaySource(f, opts)
	s.path = path
	return s, nil
}

// NewReplaySource 从任意 reader 回放，Loop 不生效
func NewReplaySource(r io.Reader, opts ReplayOptions) *ReplaySource {
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	s := &ReplaySource{opts: opts}
	s.reset(rc)
	return s
}

func (s *ReplaySource) reset(rc io.ReadCloser) {
	s.rc = rc
	s.scanner = bufio.NewScanner(rc)
	s.scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	s.line = 0
	s.last = time.Time{}
}

func (s *ReplaySource) rewind() error {
	if s.path == "" || !s.opts.Loop {
		return ErrSourceClosed
	}
	_ = s.rc.Close()
	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(err, "reopen replay %s", s.path)
	}
	log.Infof("回放到达文件末尾，从头开始: %s", s.path)
	s.reset(f)
	return nil
}

// Next 读取下一帧
func (s *ReplaySource) Next(ctx context.Context) (domain.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Frame{}, ErrSourceClosed
	}

	rewound := false
	for {
		if err := ctx.Err(); err != nil {
			return domain.Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return domain.Frame{}, errors.Wrapf(err, "read replay line %d", s.line+1)
			}
			// 空文件循环时避免死循环
			if rewound {
				return domain.Frame{}, ErrSourceClosed
			}
			if err := s.rewind(); err != nil {
				return domain.Frame{}, err
			}
			rewound = true
			continue
		}
		s.line++
		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		f, err := DecodeFrame(raw)
		if err != nil {
			return domain.Frame{}, errors.Wrapf(err, "replay line %d", s.line)
		}
		if s.opts.Realtime {
			if err := s.pace(ctx, f.CapturedAt); err != nil {
				return domain.Frame{}, err
			}
		}
		return f, nil
	}
}

func (s *ReplaySource) pace(ctx context.Context, at time.Time) error {
	if at.IsZero() {
		return nil
	}
	prev := s.last
	s.last = at
	if prev.IsZero() {
		return nil
	}
	gap := at.Sub(prev)
	if gap > maxReplayGap {
		gap = maxReplayGap
	}
	return s.opts.Sleep(ctx, gap)
}

// Close 关闭文件
func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rc.Close()
}
