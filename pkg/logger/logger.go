package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// savedConfig 保存的日志配置（切换会话/控制台时复用）
	savedConfig Config
	// currentSession 当前会话 ID（LogBySession 时用于文件名）
	currentSession string
	// consoleEnabled 是否输出到控制台（TUI 运行期间关闭）
	consoleEnabled = true
	// fileWriter 当前文件输出
	fileWriter *lumberjack.Logger
	// logMu 日志输出切换锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level        string // 日志级别: debug, info, warn, error
	OutputFile   string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize      int    // 日志文件最大大小（MB）
	MaxBackups   int    // 保留的旧日志文件数量
	MaxAge       int    // 保留旧日志文件的天数
	Compress     bool   // 是否压缩旧日志文件
	LogBySession bool   // 是否按会话命名日志文件：advisor.log -> advisor_<session>.log
}

// sessionLogFileName 按会话生成日志文件名
func sessionLogFileName(basePath, session string) string {
	if session == "" {
		return basePath
	}
	dir := filepath.Dir(basePath)
	baseName := filepath.Base(basePath)
	ext := filepath.Ext(baseName)
	name := fmt.Sprintf("%s_%s%s", baseName[:len(baseName)-len(ext)], session, ext)
	if dir == "." || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func newFormatter(colors bool) logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05", // 格式: yy-mm-dd HH:MM:ss
		ForceColors:     colors,
	}
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()
	savedConfig = config
	return apply()
}

// apply 根据 savedConfig / currentSession / consoleEnabled 重建输出，调用方持有 logMu
func apply() error {
	config := savedConfig
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var writers []io.Writer
	if consoleEnabled {
		writers = append(writers, os.Stdout)
	}

	if config.OutputFile != "" {
		logFilePath := config.OutputFile
		if config.LogBySession {
			logFilePath = sessionLogFileName(config.OutputFile, currentSession)
		}
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
			return err
		}
		if fileWriter == nil || fileWriter.Filename != logFilePath {
			if fileWriter != nil {
				_ = fileWriter.Close()
			}
			fileWriter = &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    config.MaxSize,
				MaxBackups: config.MaxBackups,
				MaxAge:     config.MaxAge,
				Compress:   config.Compress,
			}
		}
		writers = append(writers, fileWriter)
		currentLogFile = logFilePath
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}
	// 只有写到控制台时才上色，避免文件里出现转义序列
	colors := consoleEnabled && config.OutputFile == ""
	logger.SetOutput(out)
	logger.SetFormatter(newFormatter(colors))

	// 同时设置全局 logrus，各包 logrus.WithField("module", ...) 创建的 entry 共用同一输出
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter(colors))

	Logger = logger
	return nil
}

// SetSession 切换到新会话的日志文件（仅 LogBySession 时生效）
func SetSession(id string) error {
	logMu.Lock()
	defer logMu.Unlock()
	currentSession = id
	if !savedConfig.LogBySession || savedConfig.OutputFile == "" {
		return nil
	}
	if err := apply(); err != nil {
		return err
	}
	Logger.Infof("日志文件已切换到会话 %s: %s", id, currentLogFile)
	return nil
}

// SetConsole 打开/关闭控制台输出（全屏 TUI 运行时关闭，避免撕裂画面）
func SetConsole(enabled bool) error {
	logMu.Lock()
	defer logMu.Unlock()
	if consoleEnabled == enabled {
		return nil
	}
	consoleEnabled = enabled
	return apply()
}

// InitDefault 使用默认配置初始化日志系统
func InitDefault() error {
	return Init(Config{
		Level:        "info",
		OutputFile:   "logs/advisor.log",
		MaxSize:      100, // 100MB
		MaxBackups:   3,
		MaxAge:       7, // 7天
		Compress:     true,
		LogBySession: true,
	})
}

// Close 关闭日志文件
func Close() error {
	logMu.Lock()
	defer logMu.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// Debugf 记录格式化的 DEBUG 级别日志
func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

// Info 记录 INFO 级别日志
func Info(args ...interface{}) {
	if Logger != nil {
		Logger.Info(args...)
	}
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	if Logger != nil {
		return Logger.WithField(key, value)
	}
	return logrus.NewEntry(logrus.StandardLogger()).WithField(key, value)
}

// WithFields 添加多个字段到日志上下文
func WithFields(fields logrus.Fields) *logrus.Entry {
	if Logger != nil {
		return Logger.WithFields(fields)
	}
	return logrus.NewEntry(logrus.StandardLogger()).WithFields(fields)
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
