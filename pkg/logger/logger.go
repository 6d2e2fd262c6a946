// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// EngineLogger 住宿分配引擎专用日志器
type EngineLogger struct {
	base *zerolog.Logger
}

// NewEngineLogger 创建分配引擎日志器
func NewEngineLogger() *EngineLogger {
	l := Get().With().Str("component", "engine").Logger()
	return &EngineLogger{base: &l}
}

// AssignmentCommitted 记录分配提交
func (l *EngineLogger) AssignmentCommitted(attendeeID, roomID string) {
	l.base.Info().
		Str("attendee_id", attendeeID).
		Str("room_id", roomID).
		Msg("分配已提交")
}

// AssignmentCleared 记录分配清除
func (l *EngineLogger) AssignmentCleared(attendeeID string) {
	l.base.Info().
		Str("attendee_id", attendeeID).
		Msg("分配已清除")
}

// AssignmentRejected 记录分配被拒绝
func (l *EngineLogger) AssignmentRejected(attendeeID, roomID, reason string) {
	l.base.Warn().
		Str("attendee_id", attendeeID).
		Str("room_id", roomID).
		Str("reason", reason).
		Msg("分配被拒绝")
}

// BulkCommitted 记录批量分配提交
func (l *EngineLogger) BulkCommitted(roomID string, count int) {
	l.base.Info().
		Str("room_id", roomID).
		Int("count", count).
		Msg("批量分配已提交")
}

// PlanStart 记录自动分配开始
func (l *EngineLogger) PlanStart(eventID string, attendees, rooms int) {
	l.base.Info().
		Str("event_id", eventID).
		Int("attendees", attendees).
		Int("rooms", rooms).
		Msg("开始自动分配")
}

// PlanComplete 记录自动分配完成
func (l *EngineLogger) PlanComplete(eventID string, assigned, unassigned int, duration time.Duration) {
	l.base.Info().
		Str("event_id", eventID).
		Int("assigned", assigned).
		Int("unassigned", unassigned).
		Dur("duration", duration).
		Msg("自动分配完成")
}

// ConflictRetry 记录并发冲突重试
func (l *EngineLogger) ConflictRetry(eventID string, attempt int) {
	l.base.Warn().
		Str("event_id", eventID).
		Int("attempt", attempt).
		Msg("提交遇到并发冲突，重新规划")
}
