package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/bjadvisor/internal/advisor"
	"github.com/betbot/bjadvisor/internal/alerts"
	"github.com/betbot/bjadvisor/internal/controlplane/server"
	"github.com/betbot/bjadvisor/internal/counting"
	"github.com/betbot/bjadvisor/internal/dashboard"
	"github.com/betbot/bjadvisor/internal/gamestate"
	"github.com/betbot/bjadvisor/internal/ports"
	"github.com/betbot/bjadvisor/internal/recorder"
	"github.com/betbot/bjadvisor/internal/session"
	"github.com/betbot/bjadvisor/internal/strategy"
	"github.com/betbot/bjadvisor/internal/vision"
	"github.com/betbot/bjadvisor/pkg/config"
	"github.com/betbot/bjadvisor/pkg/kvstore"
	"github.com/betbot/bjadvisor/pkg/logger"
	"github.com/betbot/bjadvisor/pkg/persistence"
	"github.com/betbot/bjadvisor/pkg/shutdown"
	"github.com/betbot/bjadvisor/pkg/syncgroup"
)

const (
	gracefulShutdownPeriod = 10 * time.Second
	snapshotInterval       = 30 * time.Second
	pushBuffer             = 64
	alertBuffer            = 32
)

func firstExistingFile(paths ...string) (string, bool) {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func advisorConfig(cfg *config.Config) advisor.Config {
	return advisor.Config{
		DeckCount: cfg.Counting.DeckCount,
		Shuffle: counting.ShuffleConfig{
			DeckCount:            cfg.Counting.DeckCount,
			PenetrationLimit:     cfg.Counting.PenetrationLimit,
			MinCardsBeforeChecks: cfg.Counting.MinCardsBeforeShuffleChecks,
			InactivityThreshold:  cfg.Counting.InactivityThreshold,
			EmptyFramesThreshold: cfg.Counting.EmptyFramesThreshold,
			RecentWindow:         cfg.Counting.DuplicateWindow,
			DuplicateWarmup:      cfg.Counting.DuplicateWarmup,
			GoneFrames:           cfg.Counting.DuplicateGoneFrames,
		},
		Hand: gamestate.Config{
			StabilityFrames:  cfg.Timing.StabilityFrames,
			DecisionDebounce: cfg.Timing.DecisionDebounce,
		},
		Strategy: strategy.Options{
			Rules:             cfg.Strategy.Rules,
			DeviationsEnabled: cfg.Strategy.DeviationsEnabled,
			Illustrious18:     cfg.Strategy.Illustrious18,
			Fab4:              cfg.Strategy.Fab4,
		},
		Betting: strategy.BettingConfig{
			MinBet:        cfg.Betting.MinBet,
			MaxBet:        cfg.Betting.MaxBet,
			KellyFraction: cfg.Betting.KellyFraction,
			Spread:        cfg.Betting.SpreadArray(),
			Bankroll:      cfg.Betting.Bankroll,
		},
		HighCountThreshold: cfg.Timing.HighCountThreshold,
		HighCountInterval:  cfg.Timing.HighCountInterval,
		InsuranceThreshold: cfg.Timing.InsuranceThreshold,
	}
}

func exportFormats(raw string) ([]recorder.Format, error) {
	var out []recorder.Format
	for _, s := range strings.Split(raw, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		f, err := recorder.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	sessionID := flag.String("session", "", "继续已有会话（恢复已记录的手牌）；为空时新建")
	source := flag.String("source", "", "覆盖 vision.source: replay / http / ws / push")
	replay := flag.String("replay", "", "回放 JSONL 文件（等价于 -source replay + vision.path）")
	headless := flag.Bool("headless", false, "不启动全屏界面")
	flag.Parse()

	// .env 可选
	_ = godotenv.Load()

	if err := logger.InitDefault(); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}

	path := *configPath
	if path == "" {
		if p, ok := firstExistingFile("config/advisor.yaml", "config/advisor.yml", "config/advisor.json"); ok {
			path = p
			logrus.Infof("使用默认配置文件: %s", p)
		} else {
			logrus.Warn("未指定配置文件，将使用环境变量和默认值")
		}
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		logrus.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	if *replay != "" {
		cfg.Vision.Source = "replay"
		cfg.Vision.Path = *replay
	}
	if *source != "" {
		cfg.Vision.Source = strings.ToLower(*source)
	}

	if err := logger.Init(logger.Config{
		Level:        cfg.Log.Level,
		OutputFile:   cfg.Log.File,
		MaxSize:      cfg.Log.MaxSize,
		MaxBackups:   cfg.Log.MaxBackups,
		MaxAge:       cfg.Log.MaxAge,
		Compress:     cfg.Log.Compress,
		LogBySession: cfg.Log.BySession,
	}); err != nil {
		logrus.Errorf("初始化日志失败: %v", err)
		os.Exit(1)
	}
	defer logger.Close()

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}
	if err := logger.SetSession(id); err != nil {
		logrus.Warnf("切换会话日志失败: %v", err)
	}

	if err := run(cfg, id, *sessionID != "", *headless); err != nil {
		logrus.Errorf("❌ %v", err)
		logger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, id string, resume, headless bool) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sm := shutdown.NewManager()
	runShutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
		defer cancel()
		if failed := sm.Shutdown(ctx); failed > 0 {
			logrus.Warnf("%d 个关闭步骤失败", failed)
		}
	}

	// 存储
	key, err := kvstore.ParseKey(cfg.Session.EncryptionKey)
	if err != nil {
		return fmt.Errorf("解析 BJ_BADGER_KEY 失败: %w", err)
	}
	store, err := recorder.OpenStore(recorder.OpenOptions{
		Kind:          cfg.Session.Store,
		DataDir:       cfg.Session.DataDir,
		EncryptionKey: key,
	})
	if err != nil {
		return fmt.Errorf("打开存储失败: %w", err)
	}
	rec := recorder.New(id, cfg.Betting.Bankroll, store, nil)
	sm.OnShutdown("recorder", func(context.Context) error { return rec.Close() })

	if resume {
		n, err := rec.Restore(rootCtx)
		if err != nil {
			runShutdown()
			return fmt.Errorf("恢复会话 %s 失败: %w", id, err)
		}
		if n == 0 {
			if known, err := store.Sessions(rootCtx); err == nil && len(known) > 0 {
				logrus.Warnf("会话 %s 没有记录，已有会话: %s", id, strings.Join(known, ", "))
			}
		}
		logrus.Infof("会话 %s 已恢复 %d 手记录，资金 %s", id, n, rec.Bankroll().StringFixed(2))
	}

	// 提示输出
	sinks := alerts.FanOut{alerts.LogSink{}}
	if cfg.Alerts.Terminal {
		bell := alerts.NewTerminalSink(os.Stderr, nil)
		sm.OnShutdown("terminal-alerts", func(context.Context) error { return bell.Close() })
		sinks = append(sinks, bell)
	}
	var hub *alerts.Hub
	if cfg.Server.Enabled && cfg.Alerts.Websocket {
		hub = alerts.NewHub(alertBuffer, nil)
		sinks = append(sinks, hub)
	}

	acfg := advisorConfig(cfg)
	adv := advisor.New(acfg, advisor.Deps{
		Alerts:   sinks,
		Recorder: ports.DecisionRecorder(rec),
	})

	// 帧来源
	var push *vision.PushSource
	if cfg.Server.Enabled {
		push = vision.NewPushSource(pushBuffer)
	}
	src, err := vision.Open(rootCtx, vision.Options{
		Kind:         cfg.Vision.Source,
		Path:         cfg.Vision.Path,
		URL:          cfg.Vision.URL,
		PollInterval: cfg.Vision.PollInterval,
		Realtime:     cfg.Vision.Realtime,
		Loop:         cfg.Vision.Loop,
	}, push)
	if err != nil {
		runShutdown()
		return fmt.Errorf("打开视觉来源失败: %w", err)
	}

	formats, err := exportFormats(cfg.Session.ExportFormat)
	if err != nil {
		runShutdown()
		return err
	}
	runner, err := session.New(session.Options{
		ID:               id,
		Source:           src,
		Advisor:          adv,
		Recorder:         rec,
		Snapshots:        persistence.NewJSONFileService(filepath.Join(cfg.Session.DataDir, "sessions")),
		SnapshotInterval: snapshotInterval,
		ExportDir:        cfg.Session.ExportDir,
		ExportFormats:    formats,
	})
	if err != nil {
		runShutdown()
		return err
	}
	if resume {
		switch snap, err := runner.LoadSnapshot(); {
		case err == nil:
			logrus.Infof("上次快照: %s 保存，已处理 %d 帧，RC=%d TC=%.2f",
				snap.SavedAt.Format(time.RFC3339), snap.Frames, snap.Status.RunningCount, snap.Status.TrueCount)
		case errors.Is(err, persistence.ErrNotExists):
			logrus.Infof("会话 %s 没有快照", id)
		default:
			logrus.Warnf("读取会话快照失败: %v", err)
		}
	}
	sm.OnShutdown("session", runner.Finish)
	sm.OnShutdown("vision", func(context.Context) error { return src.Close() })

	if cfg.Server.Enabled {
		srv, err := server.New(server.Config{
			Addr:           cfg.Server.Addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxFrameRate:   cfg.Server.MaxFrameRate,
		}, runner, push, hub)
		if err != nil {
			runShutdown()
			return err
		}
		addr, err := srv.Start()
		if err != nil {
			runShutdown()
			return err
		}
		logrus.Infof("控制服务已启动: http://%s", addr)
		sm.OnShutdown("server", srv.Shutdown)
	}

	logger.WithFields(logrus.Fields{
		"session": id,
		"decks":   acfg.DeckCount,
		"rules":   acfg.Strategy.Rules,
		"source":  cfg.Vision.Source,
		"store":   cfg.Session.Store,
	}).Info("✅ 21 点助手已启动，按 Ctrl+C 或 Q 停止")

	g := syncgroup.NewSyncGroup()
	runErr := make(chan error, 1)
	g.Go("session", func() { runErr <- runner.Run(rootCtx) })

	var ui *dashboard.Dashboard
	if !headless && dashboard.IsTerminal() {
		ui = dashboard.New(runner, dashboard.Options{Title: "Blackjack Advisor " + shortID(id)})
		if err := logger.SetConsole(false); err != nil {
			logrus.Warnf("关闭控制台日志失败: %v", err)
		}
		g.Go("dashboard", func() {
			if err := ui.Run(rootCtx); err != nil {
				logrus.Errorf("界面退出: %v", err)
			}
		})
	} else if dashboard.StdinIsTerminal() {
		g.Go("keys", func() {
			if err := dashboard.RunHeadless(rootCtx, runner, os.Stdin, os.Stdout); err != nil {
				logrus.Warnf("读取按键失败: %v", err)
			}
			stop()
		})
	}

	var fatal error
	select {
	case <-rootCtx.Done():
		logrus.Info("收到停止信号，正在关闭...")
	case err := <-runErr:
		if err != nil {
			fatal = err
		} else {
			logrus.Info("帧来源已结束，正在关闭...")
		}
	}
	stop()

	if ui != nil {
		ui.Stop()
	}
	// 界面退出后才恢复控制台日志，避免写花终端
	g.WaitTimeout(3 * time.Second)
	if ui != nil {
		_ = logger.SetConsole(true)
	}
	runShutdown()

	s := runner.Info().Summary
	logger.WithField("session", id).Infof("本次会话: %d 手, 净盈亏 %s, 执行率 %.0f%%",
		s.Hands, s.NetProfit.StringFixed(2), s.Adherence*100)
	return fatal
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
