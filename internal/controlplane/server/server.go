package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/advisor"
	"github.com/betbot/bjadvisor/internal/alerts"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/betbot/bjadvisor/internal/recorder"
	"github.com/betbot/bjadvisor/internal/session"
	"github.com/betbot/bjadvisor/internal/vision"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "server")

type Config struct {
	Addr           string
	AllowedOrigins []string // 支持一个 * 通配，如 http://localhost:*
	MaxFrameRate   int      // 每个推流连接每秒最多接收的帧数，默认 120
}

// Controller 服务对会话的全部依赖，由 session.Runner 实现
type Controller interface {
	Status() advisor.Status
	LastDecision() (domain.Decision, bool)
	ResetCount()
	NextHand()
	ForceDecision() bool
	MarkHandComplete()
	SetBankroll(v float64)
	Settle(ctx context.Context, handNumber int, actual domain.Action, outcome recorder.Outcome, payout float64) (recorder.HandRecord, error)
	Info() session.Info
}

// Server 本地状态/控制服务。frames 与 hub 可为空，对应的 websocket 路由返回 404
type Server struct {
	cfg      Config
	ctl      Controller
	frames   *vision.PushSource
	hub      *alerts.Hub
	upgrader websocket.Upgrader

	mu   sync.Mutex
	http *http.Server
	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

func New(cfg Config, ctl Controller, frames *vision.PushSource, hub *alerts.Hub) (*Server, error) {
	if ctl == nil {
		return nil, errors.New("controller is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8765"
	}
	if cfg.MaxFrameRate <= 0 {
		cfg.MaxFrameRate = 120
	}
	s := &Server{cfg: cfg, ctl: ctl, frames: frames, hub: hub, done: make(chan struct{})}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// checkOrigin 没有 Origin 头（本地程序）直接放行，浏览器只放行白名单
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if originMatches(o, origin) {
			return true
		}
	}
	log.Warnf("拒绝 websocket 来源: %s", origin)
	return false
}

func originMatches(pattern, origin string) bool {
	i := strings.IndexByte(pattern, '*')
	if i < 0 {
		return pattern == origin
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	return len(origin) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix)
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/decision", s.handleLastDecision)
	api.GET("/session", s.handleSession)
	api.POST("/bankroll", s.handleBankroll)

	controls := api.Group("/controls")
	controls.POST("/reset", s.handleReset)
	controls.POST("/next", s.handleNext)
	controls.POST("/force", s.handleForce)
	controls.POST("/complete", s.handleComplete)

	api.POST("/hands/:seq/settle", s.handleSettle)

	ws := r.Group("/ws")
	ws.GET("/frames", s.handleFramesWS)
	ws.GET("/alerts", s.handleAlertsWS)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// Start 在后台监听；监听失败直接返回错误
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("控制服务异常退出")
		}
	}()
	log.Infof("控制服务已启动: http://%s", ln.Addr())
	return ln.Addr(), nil
}

// Shutdown 停止接受新请求并等待处理中的请求结束
func (s *Server) Shutdown(ctx context.Context) error {
	// websocket 连接已被劫持，不受 http.Server.Shutdown 管理
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}
