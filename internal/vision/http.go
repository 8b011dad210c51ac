package vision

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// HTTPSource 轮询推理服务：GET <url> 返回一帧 JSON，204 表示当前没有检测结果
type HTTPSource struct {
	client   *resty.Client
	url      string
	interval time.Duration

	mu     sync.Mutex
	last   time.Time
	closed bool
}

// NewHTTPSource interval 为两次请求之间的最小间隔
func NewHTTPSource(url string, interval time.Duration) *HTTPSource {
	url = strings.TrimSuffix(url, "/")
	client := resty.New().
		SetTimeout(2*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(50*time.Millisecond).
		SetRetryMaxWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")
	return &HTTPSource{client: client, url: url, interval: interval}
}

// Next 等到下一个轮询时刻再请求
func (s *HTTPSource) Next(ctx context.Context) (domain.Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Frame{}, ErrSourceClosed
	}
	wait := time.Until(s.last.Add(s.interval))
	s.mu.Unlock()

	if err := sleepCtx(ctx, wait); err != nil {
		return domain.Frame{}, err
	}

	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()
	if err != nil {
		return domain.Frame{}, errors.Wrap(err, "poll inference")
	}
	switch {
	case resp.StatusCode() == http.StatusNoContent:
		return domain.Frame{CapturedAt: time.Now()}, nil
	case !resp.IsSuccess():
		return domain.Frame{}, errors.Errorf("poll inference: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return DecodeFrame(resp.Body())
}

// Close 之后 Next 返回 ErrSourceClosed
func (s *HTTPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
