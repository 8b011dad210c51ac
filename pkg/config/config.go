package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid 配置校验失败（具体字段见包装信息）
var ErrInvalid = errors.New("invalid config")

// KnownRules 支持的规则标签
var KnownRules = []string{"s17", "s17_das", "h17", "h17_das"}

// CountingConfig 计数与洗牌检测配置
type CountingConfig struct {
	DeckCount                   int           // 副数，默认 6
	PenetrationLimit            float64       // 渗透率上限，默认 0.75
	MinCardsBeforeShuffleChecks int           // 洗牌检查前的最少已见张数，默认 26
	InactivityThreshold         time.Duration // 长停顿阈值，默认 30s
	EmptyFramesThreshold        int           // 连续空帧阈值，默认 60
	DuplicateWindow             int           // 重复牌检查的最近出现记录容量，默认 20
	DuplicateWarmup             int           // 重复牌检查前的最少出现次数，默认 10
	DuplicateGoneFrames         int           // 连续缺席多少帧视为离场，默认 30
}

// StrategyConfig 策略配置
type StrategyConfig struct {
	Rules             string // s17_das / h17 ...
	DeviationsEnabled bool
	Illustrious18     bool
	Fab4              bool
}

// BettingConfig 下注配置
type BettingConfig struct {
	MinBet        float64
	MaxBet        float64
	KellyFraction float64
	Spread        []int // 5 档注码单位
	Bankroll      float64
}

// TimingConfig 时间闸门配置
type TimingConfig struct {
	StabilityFrames    int
	DecisionDebounce   time.Duration
	HighCountThreshold float64
	HighCountInterval  time.Duration
	InsuranceThreshold float64
}

// SessionConfig 会话记录配置
type SessionConfig struct {
	DataDir      string // 数据目录
	Store        string // json / badger / sqlite / none
	ExportFormat string // 结束时导出，逗号分隔: json / csv / yaml；空=不导出
	ExportDir    string
	// EncryptionKey badger 加密密钥（hex 或 base64，32 字节），只从环境变量读取
	EncryptionKey string
}

// ServerConfig 状态/控制 HTTP 服务
type ServerConfig struct {
	Enabled        bool
	Addr           string
	AllowedOrigins []string
	MaxFrameRate   int // /ws/frames 每连接每秒帧数上限
}

// VisionConfig 视觉检测来源
type VisionConfig struct {
	Source       string // replay / http / ws / push
	Path         string // replay: JSONL 文件
	URL          string // http / ws 地址
	PollInterval time.Duration
	Realtime     bool // replay 按帧时间戳节奏回放
	Loop         bool
}

// AlertsConfig 提示输出
type AlertsConfig struct {
	Terminal  bool // 终端响铃
	Websocket bool // 推送到 /ws/alerts
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	BySession  bool
}

// Config 应用配置，Load 之后只读
type Config struct {
	Counting CountingConfig
	Strategy StrategyConfig
	Betting  BettingConfig
	Timing   TimingConfig
	Session  SessionConfig
	Server   ServerConfig
	Vision   VisionConfig
	Alerts   AlertsConfig
	Log      LogConfig
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）。布尔开关用指针区分“未填写”和 false。
type ConfigFile struct {
	Counting struct {
		DeckCount                   int     `yaml:"deck_count" json:"deck_count"`
		PenetrationLimit            float64 `yaml:"penetration_limit" json:"penetration_limit"`
		MinCardsBeforeShuffleChecks int     `yaml:"min_cards_before_shuffle_checks" json:"min_cards_before_shuffle_checks"`
		InactivityThresholdS        int     `yaml:"inactivity_threshold_s" json:"inactivity_threshold_s"`
		EmptyFramesThreshold        int     `yaml:"empty_frames_threshold" json:"empty_frames_threshold"`
		DuplicateWindow             int     `yaml:"duplicate_window" json:"duplicate_window"`
		DuplicateWarmup             int     `yaml:"duplicate_warmup" json:"duplicate_warmup"`
		DuplicateGoneFrames         int     `yaml:"duplicate_gone_frames" json:"duplicate_gone_frames"`
	} `yaml:"counting" json:"counting"`
	Strategy struct {
		Rules             string `yaml:"rules" json:"rules"`
		DeviationsEnabled *bool  `yaml:"deviations_enabled" json:"deviations_enabled"`
		Illustrious18     *bool  `yaml:"illustrious_18" json:"illustrious_18"`
		Fab4              *bool  `yaml:"fab_4" json:"fab_4"`
	} `yaml:"strategy" json:"strategy"`
	Betting struct {
		MinBet        float64 `yaml:"min_bet" json:"min_bet"`
		MaxBet        float64 `yaml:"max_bet" json:"max_bet"`
		KellyFraction float64 `yaml:"kelly_fraction" json:"kelly_fraction"`
		Spread        []int   `yaml:"spread" json:"spread"`
		Bankroll      float64 `yaml:"bankroll" json:"bankroll"`
	} `yaml:"betting" json:"betting"`
	Timing struct {
		StabilityFrames     int     `yaml:"stability_frames" json:"stability_frames"`
		DecisionDebounceMs  int     `yaml:"decision_debounce_ms" json:"decision_debounce_ms"`
		HighCountThreshold  float64 `yaml:"high_count_threshold" json:"high_count_threshold"`
		HighCountIntervalMs int     `yaml:"high_count_interval_ms" json:"high_count_interval_ms"`
		InsuranceThreshold  float64 `yaml:"insurance_threshold" json:"insurance_threshold"`
	} `yaml:"timing" json:"timing"`
	Session struct {
		DataDir      string `yaml:"data_dir" json:"data_dir"`
		Store        string `yaml:"store" json:"store"`
		ExportFormat string `yaml:"export_format" json:"export_format"`
		ExportDir    string `yaml:"export_dir" json:"export_dir"`
	} `yaml:"session" json:"session"`
	Server struct {
		Enabled        bool     `yaml:"enabled" json:"enabled"`
		Addr           string   `yaml:"addr" json:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
		MaxFrameRate   int      `yaml:"max_frame_rate" json:"max_frame_rate"`
	} `yaml:"server" json:"server"`
	Vision struct {
		Source         string `yaml:"source" json:"source"`
		Path           string `yaml:"path" json:"path"`
		URL            string `yaml:"url" json:"url"`
		PollIntervalMs int    `yaml:"poll_interval_ms" json:"poll_interval_ms"`
		Realtime       bool   `yaml:"realtime" json:"realtime"`
		Loop           bool   `yaml:"loop" json:"loop"`
	} `yaml:"vision" json:"vision"`
	Alerts struct {
		Terminal  *bool `yaml:"terminal" json:"terminal"`
		Websocket *bool `yaml:"websocket" json:"websocket"`
	} `yaml:"alerts" json:"alerts"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   bool   `yaml:"compress" json:"compress"`
		BySession  *bool  `yaml:"by_session" json:"by_session"`
	} `yaml:"log" json:"log"`
}

// envOverrides 环境变量覆盖（优先级最高），未设置的指针字段保持 nil
type envOverrides struct {
	DeckCount  *int     `env:"BJ_DECK_COUNT"`
	MinBet     *float64 `env:"BJ_MIN_BET"`
	MaxBet     *float64 `env:"BJ_MAX_BET"`
	Bankroll   *float64 `env:"BJ_BANKROLL"`
	Rules      string   `env:"BJ_RULES"`
	LogLevel   string   `env:"BJ_LOG_LEVEL"`
	LogFile    string   `env:"BJ_LOG_FILE"`
	DataDir    string   `env:"BJ_DATA_DIR"`
	Store      string   `env:"BJ_STORE"`
	ServerAddr string   `env:"BJ_SERVER_ADDR"`
	VisionURL  string   `env:"BJ_VISION_URL"`
	VisionPath string   `env:"BJ_VISION_PATH"`
	BadgerKey  string   `env:"BJ_BADGER_KEY"`
}

// Default 全部默认值
func Default() *Config {
	return &Config{
		Counting: CountingConfig{
			DeckCount:                   6,
			PenetrationLimit:            0.75,
			MinCardsBeforeShuffleChecks: 26,
			InactivityThreshold:         30 * time.Second,
			EmptyFramesThreshold:        60,
			DuplicateWindow:             20,
			DuplicateWarmup:             10,
			DuplicateGoneFrames:         30,
		},
		Strategy: StrategyConfig{
			Rules:             "s17_das",
			DeviationsEnabled: true,
			Illustrious18:     true,
			Fab4:              true,
		},
		Betting: BettingConfig{
			MinBet:        10,
			MaxBet:        500,
			KellyFraction: 0.25,
			Spread:        []int{1, 2, 4, 8, 12},
			Bankroll:      10000,
		},
		Timing: TimingConfig{
			StabilityFrames:    3,
			DecisionDebounce:   time.Second,
			HighCountThreshold: 3,
			HighCountInterval:  5 * time.Second,
			InsuranceThreshold: 3,
		},
		Session: SessionConfig{
			DataDir:   "data",
			Store:     "json",
			ExportDir: "data/exports",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8765",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
			MaxFrameRate:   120,
		},
		Vision: VisionConfig{
			Source:       "replay",
			PollInterval: 33 * time.Millisecond,
		},
		Alerts: AlertsConfig{Terminal: true, Websocket: true},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/advisor.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			BySession:  true,
		},
	}
}

// LoadFromFile 加载配置：默认值 < 配置文件 < 环境变量。filePath 为空时只用默认值和环境变量。
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		cf, err := loadConfigFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "加载配置文件失败 %s", filePath)
		}
		cfg.merge(cf)
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, errors.Wrap(err, "解析环境变量失败")
	}
	cfg.applyEnv(ov)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}

	var configFile ConfigFile
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, errors.Wrap(err, "解析 YAML 配置文件失败")
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, errors.Wrap(err, "解析 JSON 配置文件失败")
		}
	default:
		return nil, errors.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return &configFile, nil
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if s := strings.TrimSpace(v); s != "" {
		*dst = s
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, ms int) {
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

// merge 配置文件中的非零值覆盖默认值
func (c *Config) merge(cf *ConfigFile) {
	setInt(&c.Counting.DeckCount, cf.Counting.DeckCount)
	setFloat(&c.Counting.PenetrationLimit, cf.Counting.PenetrationLimit)
	setInt(&c.Counting.MinCardsBeforeShuffleChecks, cf.Counting.MinCardsBeforeShuffleChecks)
	if cf.Counting.InactivityThresholdS > 0 {
		c.Counting.InactivityThreshold = time.Duration(cf.Counting.InactivityThresholdS) * time.Second
	}
	setInt(&c.Counting.EmptyFramesThreshold, cf.Counting.EmptyFramesThreshold)
	setInt(&c.Counting.DuplicateWindow, cf.Counting.DuplicateWindow)
	setInt(&c.Counting.DuplicateWarmup, cf.Counting.DuplicateWarmup)
	setInt(&c.Counting.DuplicateGoneFrames, cf.Counting.DuplicateGoneFrames)

	setString(&c.Strategy.Rules, strings.ToLower(cf.Strategy.Rules))
	setBool(&c.Strategy.DeviationsEnabled, cf.Strategy.DeviationsEnabled)
	setBool(&c.Strategy.Illustrious18, cf.Strategy.Illustrious18)
	setBool(&c.Strategy.Fab4, cf.Strategy.Fab4)

	setFloat(&c.Betting.MinBet, cf.Betting.MinBet)
	setFloat(&c.Betting.MaxBet, cf.Betting.MaxBet)
	setFloat(&c.Betting.KellyFraction, cf.Betting.KellyFraction)
	setFloat(&c.Betting.Bankroll, cf.Betting.Bankroll)
	if len(cf.Betting.Spread) > 0 {
		c.Betting.Spread = append([]int(nil), cf.Betting.Spread...)
	}

	setInt(&c.Timing.StabilityFrames, cf.Timing.StabilityFrames)
	setMillis(&c.Timing.DecisionDebounce, cf.Timing.DecisionDebounceMs)
	setFloat(&c.Timing.HighCountThreshold, cf.Timing.HighCountThreshold)
	setMillis(&c.Timing.HighCountInterval, cf.Timing.HighCountIntervalMs)
	setFloat(&c.Timing.InsuranceThreshold, cf.Timing.InsuranceThreshold)

	setString(&c.Session.DataDir, cf.Session.DataDir)
	setString(&c.Session.Store, strings.ToLower(cf.Session.Store))
	setString(&c.Session.ExportFormat, strings.ToLower(cf.Session.ExportFormat))
	setString(&c.Session.ExportDir, cf.Session.ExportDir)

	c.Server.Enabled = c.Server.Enabled || cf.Server.Enabled
	setString(&c.Server.Addr, cf.Server.Addr)
	if len(cf.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = append([]string(nil), cf.Server.AllowedOrigins...)
	}
	setInt(&c.Server.MaxFrameRate, cf.Server.MaxFrameRate)

	setString(&c.Vision.Source, strings.ToLower(cf.Vision.Source))
	setString(&c.Vision.Path, cf.Vision.Path)
	setString(&c.Vision.URL, cf.Vision.URL)
	setMillis(&c.Vision.PollInterval, cf.Vision.PollIntervalMs)
	c.Vision.Realtime = c.Vision.Realtime || cf.Vision.Realtime
	c.Vision.Loop = c.Vision.Loop || cf.Vision.Loop

	setBool(&c.Alerts.Terminal, cf.Alerts.Terminal)
	setBool(&c.Alerts.Websocket, cf.Alerts.Websocket)

	setString(&c.Log.Level, cf.Log.Level)
	setString(&c.Log.File, cf.Log.File)
	setInt(&c.Log.MaxSize, cf.Log.MaxSize)
	setInt(&c.Log.MaxBackups, cf.Log.MaxBackups)
	setInt(&c.Log.MaxAge, cf.Log.MaxAge)
	c.Log.Compress = c.Log.Compress || cf.Log.Compress
	setBool(&c.Log.BySession, cf.Log.BySession)
}

func (c *Config) applyEnv(ov envOverrides) {
	if ov.DeckCount != nil {
		c.Counting.DeckCount = *ov.DeckCount
	}
	if ov.MinBet != nil {
		c.Betting.MinBet = *ov.MinBet
	}
	if ov.MaxBet != nil {
		c.Betting.MaxBet = *ov.MaxBet
	}
	if ov.Bankroll != nil {
		c.Betting.Bankroll = *ov.Bankroll
	}
	setString(&c.Strategy.Rules, strings.ToLower(ov.Rules))
	setString(&c.Log.Level, ov.LogLevel)
	setString(&c.Log.File, ov.LogFile)
	setString(&c.Session.DataDir, ov.DataDir)
	setString(&c.Session.Store, strings.ToLower(ov.Store))
	setString(&c.Server.Addr, ov.ServerAddr)
	setString(&c.Vision.URL, ov.VisionURL)
	setString(&c.Vision.Path, ov.VisionPath)
	setString(&c.Session.EncryptionKey, ov.BadgerKey)
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Counting.DeckCount < 1 || c.Counting.DeckCount > 8 {
		return invalid("deck_count=%d 必须在 1 到 8 之间", c.Counting.DeckCount)
	}
	if c.Counting.PenetrationLimit <= 0 || c.Counting.PenetrationLimit > 1 {
		return invalid("penetration_limit=%.2f 必须在 (0, 1] 之间", c.Counting.PenetrationLimit)
	}
	if c.Betting.MinBet <= 0 {
		return invalid("min_bet 必须大于 0")
	}
	if c.Betting.MaxBet < c.Betting.MinBet {
		return invalid("max_bet=%.2f 不能小于 min_bet=%.2f", c.Betting.MaxBet, c.Betting.MinBet)
	}
	if c.Betting.KellyFraction <= 0 || c.Betting.KellyFraction > 1 {
		return invalid("kelly_fraction=%.2f 必须在 (0, 1] 之间", c.Betting.KellyFraction)
	}
	if len(c.Betting.Spread) != 5 {
		return invalid("spread 必须正好 5 档, 当前 %d", len(c.Betting.Spread))
	}
	for _, u := range c.Betting.Spread {
		if u <= 0 {
			return invalid("spread 的每一档必须大于 0")
		}
	}
	if !isKnownRule(c.Strategy.Rules) {
		return invalid("未知的规则标签: %s (支持 %s)", c.Strategy.Rules, strings.Join(KnownRules, ", "))
	}
	switch c.Session.Store {
	case "json", "badger", "sqlite", "none":
	default:
		return invalid("未知的存储类型: %s", c.Session.Store)
	}
	for _, f := range strings.Split(c.Session.ExportFormat, ",") {
		switch strings.TrimSpace(f) {
		case "", "json", "csv", "yaml", "yml":
		default:
			return invalid("未知的导出格式: %s", f)
		}
	}
	switch c.Vision.Source {
	case "replay", "http", "ws", "push":
	default:
		return invalid("未知的视觉来源: %s", c.Vision.Source)
	}
	if c.Vision.Source == "push" && !c.Server.Enabled {
		return invalid("vision.source=push 需要开启 server")
	}
	return nil
}

func isKnownRule(r string) bool {
	for _, k := range KnownRules {
		if r == k {
			return true
		}
	}
	return false
}

// SpreadArray 5 档注码单位（Validate 之后调用）
func (b BettingConfig) SpreadArray() [5]int {
	var out [5]int
	copy(out[:], b.Spread)
	return out
}
