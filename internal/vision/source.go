// Package vision 把外部检测服务的输出转成一帧帧的 domain.Frame。
// 识别本身不在这里做：来源可以是回放文件、HTTP 推理服务或 websocket 推流。
package vision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "vision")

// ErrSourceClosed 来源已关闭或已读完
var ErrSourceClosed = errors.New("vision: source closed")

// Source 帧来源。Next 阻塞到下一帧、ctx 取消或来源结束
type Source interface {
	Next(ctx context.Context) (domain.Frame, error)
	Close() error
}

// wireFrame 线上格式。card_ids 是手写回放文件用的简写，置信度按 1 处理
type wireFrame struct {
	Seq        uint64             `json:"seq"`
	CapturedAt time.Time          `json:"captured_at"`
	Detections []domain.Detection `json:"detections"`
	CardIDs    []uint8            `json:"card_ids"`
}

// DecodeFrame 解析一帧。越界的 card_id 原样保留，由核心按无效检测丢弃
func DecodeFrame(raw []byte) (domain.Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Frame{}, errors.Wrap(err, "decode frame")
	}
	f := domain.Frame{Seq: w.Seq, CapturedAt: w.CapturedAt, Detections: w.Detections}
	for _, id := range w.CardIDs {
		f.Detections = append(f.Detections, domain.Detection{CardID: id, Confidence: 1, Timestamp: w.CapturedAt})
	}
	return f, nil
}

// EncodeFrame 序列化一帧（完整格式）
func EncodeFrame(f domain.Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	return b, errors.Wrap(err, "encode frame")
}

// sleepCtx 可被 ctx 打断的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options 按配置选择来源
type Options struct {
	Kind         string // replay | http | ws | push
	Path         string
	URL          string
	PollInterval time.Duration
	Realtime     bool
	Loop         bool
}

// Open 打开帧来源。push 模式直接返回传入的 PushSource（由 /ws/frames 喂数据）
func Open(ctx context.Context, opts Options, push *PushSource) (Source, error) {
	switch opts.Kind {
	case "replay":
		if opts.Path == "" {
			return nil, errors.New("vision: replay path is required")
		}
		s, err := OpenReplay(opts.Path, ReplayOptions{Realtime: opts.Realtime, Loop: opts.Loop})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "http":
		if opts.URL == "" {
			return nil, errors.New("vision: url is required")
		}
		return NewHTTPSource(opts.URL, opts.PollInterval), nil
	case "ws":
		if opts.URL == "" {
			return nil, errors.New("vision: url is required")
		}
		s, err := Dial(ctx, opts.URL, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "push":
		if push == nil {
			return nil, errors.New("vision: push source requires the control server")
		}
		return push, nil
	}
	return nil, errors.Errorf("vision: unknown source %q", opts.Kind)
}
