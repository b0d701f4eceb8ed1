// Package logger 封装 zerolog，为服务、CLI 与后台任务提供统一的结构化日志
package logger

import (
	"context"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger 全局日志实例，Init 之前为 zerolog 默认 logger
var Logger = log.Logger

// Config 日志配置
type Config struct {
	Level        string `json:"level" yaml:"level"`                 // debug, info, warn, error
	Format       string `json:"format" yaml:"format"`               // json 或 pretty
	TimeFormat   string `json:"time_format" yaml:"time_format"`     // 时间戳格式，为空时使用 RFC3339
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"` // 是否输出调用位置
}

// Init 按配置初始化全局日志，输出到标准输出
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter 按配置初始化全局日志并写入指定 writer，测试中可传入 bytes.Buffer
func InitWithWriter(cfg Config, w io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	output := w
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: cfg.TimeFormat}
	}

	zctx := zerolog.New(output).Level(level).With().Timestamp()
	if cfg.ReportCaller {
		zctx = zctx.Caller()
	}

	Logger = zctx.Logger()
	log.Logger = Logger
}

// Debug 开始一条调试级别日志
func Debug() *zerolog.Event { return Logger.Debug() }

// Info 开始一条信息级别日志
func Info() *zerolog.Event { return Logger.Info() }

// Warn 开始一条警告级别日志
func Warn() *zerolog.Event { return Logger.Warn() }

// Error 开始一条错误级别日志
func Error() *zerolog.Event { return Logger.Error() }

// Fatal 记录后退出进程
func Fatal() *zerolog.Event { return Logger.Fatal() }

// Ctx 从上下文取出 logger；上下文中没有时返回全局 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &Logger
}

// WithContext 把全局 logger 放入上下文
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}

// With 返回带固定字段的子 logger，例如 submission_uuid
func With(fields map[string]interface{}) zerolog.Logger {
	return Logger.With().Fields(fields).Logger()
}

// StdLogger 返回一个写入全局 zerolog 的标准库 logger，
// 供只接受 *log.Logger 的组件（PDF 提取器、outbox relay）使用
func StdLogger(component string) *stdlog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return stdlog.New(stdWriter{l: l}, "", 0)
}

type stdWriter struct {
	l zerolog.Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	w.l.Info().Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
