package vision

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type frameResult struct {
	frame domain.Frame
	err   error
}

// DialSource 连接推流服务，每条文本消息为一帧
type DialSource struct {
	conn   *websocket.Conn
	frames chan frameResult
	done   chan struct{}
	once   sync.Once
}

// Dial 建立连接并启动读循环
func Dial(ctx context.Context, url string, header http.Header) (*DialSource, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	s := &DialSource{
		conn:   conn,
		frames: make(chan frameResult, 8),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	log.Infof("已连接检测推流: %s", url)
	return s, nil
}

func (s *DialSource) readLoop() {
	defer close(s.frames)
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.WithError(err).Warn("检测推流断开")
				select {
				case s.frames <- frameResult{err: errors.Wrap(err, "read frame")}:
				case <-s.done:
				}
			}
			return
		}
		f, err := DecodeFrame(msg)
		if err != nil {
			log.WithError(err).Warn("忽略无法解析的帧")
			continue
		}
		select {
		case s.frames <- frameResult{frame: f}:
		case <-s.done:
			return
		}
	}
}

// Next 返回下一帧；连接断开后返回读错误，之后返回 ErrSourceClosed
func (s *DialSource) Next(ctx context.Context) (domain.Frame, error) {
	select {
	case <-ctx.Done():
		return domain.Frame{}, ctx.Err()
	case r, ok := <-s.frames:
		if !ok {
			return domain.Frame{}, ErrSourceClosed
		}
		return r.frame, r.err
	}
}

// Close 发送关闭帧并断开
func (s *DialSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
