package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-normalizer/internal/api/handler"
	"resume-normalizer/internal/api/router"
	"resume-normalizer/internal/config"
	appCoreLogger "resume-normalizer/internal/logger"
	"resume-normalizer/internal/outbox"
	"resume-normalizer/internal/processor"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/tracing"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file (默认按搜索路径查找)")
	pflag.Parse()

	// .env 只用于本地开发，缺失不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appCoreLogger.Warn().Err(err).Msg("加载 .env 失败")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	closeLog := initLogger(cfg.Logger)
	defer closeLog()
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	resumeProcessor, err := processor.NewFromConfig(ctx, cfg, storageManager)
	if err != nil {
		glog.Fatalf("初始化ResumeProcessor失败: %v", err)
	}
	glog.Info("ResumeProcessor初始化成功")

	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(
			storageManager.MySQL.DB(),
			storageManager.RabbitMQ,
			appCoreLogger.StdLogger("outbox-relay"),
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.OutboxPollInterval, 2*time.Second)),
			outbox.WithBatchSize(cfg.RabbitMQ.OutboxBatchSize),
			outbox.WithMaxRetries(cfg.RabbitMQ.MaxRetries),
		)
		messageRelay.Start(ctx)
		glog.Info("消息中继服务已启动")
	}

	resumeHandler := handler.NewResumeHandler(cfg, handler.DependenciesFromStorage(storageManager), resumeProcessor)
	if resumeHandler.UploadEnabled() && storageManager.RabbitMQ != nil {
		if _, err := resumeHandler.StartResumeUploadConsumer(ctx); err != nil {
			glog.Fatalf("启动简历上传消费者失败: %v", err)
		}
	} else {
		glog.Warn("异步上传链路未启用，仅提供同步标准化接口")
	}

	h := router.NewServer(cfg, resumeHandler)
	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	cancel()
	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化 zerolog，并通过适配器接管 Hertz 的日志
func initLogger(cfg config.LoggerConfig) func() {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		fileWriter, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			appCoreLogger.Warn().Err(err).Str("file", cfg.File).Msg("无法打开日志文件，仅输出到控制台")
		} else {
			out = zerolog.MultiLevelWriter(os.Stdout, fileWriter)
			closeFn = func() { _ = fileWriter.Close() }
		}
	}

	appCoreLogger.InitWithWriter(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	}, out)

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	glog.SetLevel(hertzLevel(cfg.Level))
	return closeFn
}

func hertzLevel(level string) glog.Level {
	switch level {
	case "debug":
		return glog.LevelDebug
	case "warn":
		return glog.LevelWarn
	case "error":
		return glog.LevelError
	default:
		return glog.LevelInfo
	}
}
