package server

import (
	"net/http"
	"time"

	"github.com/betbot/bjadvisor/internal/vision"
	"github.com/betbot/bjadvisor/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameLength = 512 * 1024
)

// handleFramesWS 检测推流入口：每条文本消息一帧，写入 PushSource
func (s *Server) handleFramesWS(c *gin.Context) {
	if s.frames == nil {
		writeError(c, http.StatusNotFound, errors.New("frame ingest is disabled"))
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("frames 升级失败")
		return
	}
	defer conn.Close()
	log.Infof("检测推流已连接: %s", conn.RemoteAddr())

	conn.SetReadLimit(maxFrameLength)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
			_ = conn.Close()
		case <-finished:
		}
	}()

	limiter := ratelimit.NewTokenBucket(s.cfg.MaxFrameRate, float64(s.cfg.MaxFrameRate))
	var received, rejected, throttled uint64
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("检测推流异常断开")
			}
			break
		}
		// 推流端持续发送数据，收到消息也视为存活
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if !limiter.Allow() {
			throttled++
			continue
		}

		f, err := vision.DecodeFrame(msg)
		if err != nil {
			rejected++
			log.WithError(err).Debug("丢弃无法解析的帧")
			continue
		}
		if err := s.frames.Push(f); err != nil {
			log.WithError(err).Info("帧来源已关闭，断开推流")
			break
		}
		received++
	}
	log.Infof("检测推流断开: 收到 %d 帧, 解析失败 %d 帧, 限流丢弃 %d 帧, 缓冲溢出累计 %d 帧",
		received, rejected, throttled, s.frames.Dropped())
}

// handleAlertsWS 告警推送：每个告警一条 JSON 消息，定时 ping 保活
func (s *Server) handleAlertsWS(c *gin.Context) {
	if s.hub == nil {
		writeError(c, http.StatusNotFound, errors.New("alert stream is disabled"))
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("alerts 升级失败")
		return
	}
	sub := s.hub.Subscribe()
	log.Debugf("告警订阅 +1，当前 %d 个", s.hub.Subscribers())
	defer func() {
		sub.Close()
		conn.Close()
	}()

	// 读循环只处理 pong 和关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
			return
		}
	}
}
