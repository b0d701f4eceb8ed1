package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-normalizer/internal/api/handler"
	"resume-normalizer/internal/config"
	"resume-normalizer/internal/logger"
	"resume-normalizer/internal/tracing"
	"resume-normalizer/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderRequestID 请求ID头，客户端未提供时自动生成
	HeaderRequestID = "X-Request-ID"
	// HeaderAPIKey API Key 头
	HeaderAPIKey = "X-API-Key"

	healthPath = "/api/v1/health"
)

// NewServer 创建 Hertz 服务并注册全部路由。启用追踪时挂载 OpenTelemetry 中间件
func NewServer(cfg *config.Config, resumeHandler *handler.ResumeHandler, opts ...hertzconfig.Option) *server.Hertz {
	opts = append([]hertzconfig.Option{server.WithHostPorts(cfg.Server.Address)}, opts...)
	if cfg.Server.MaxUploadMB > 0 {
		opts = append(opts, server.WithMaxRequestBodySize((cfg.Server.MaxUploadMB+1)<<20))
	}

	var tracerCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracer, tc := hertztracing.NewServerTracer()
		opts = append(opts, tracer)
		tracerCfg = tc
	}

	h := server.New(opts...)
	if tracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	}
	RegisterRoutes(h, cfg, resumeHandler)
	return h
}

// RegisterRoutes 注册中间件与 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.Config, resumeHandler *handler.ResumeHandler) {
	h.Use(RequestIDMiddleware(), AccessLogMiddleware())
	// 先鉴权再限流，未授权请求不消耗令牌
	if len(cfg.Server.APIKeys) > 0 {
		h.Use(APIKeyMiddleware(cfg.Server.APIKeys))
	}
	if cfg.Server.RateLimitQPM > 0 {
		h.Use(RateLimitMiddleware(ratelimit.NewTokenBucket(cfg.Server.RateLimitQPM, cfg.Server.RateLimitQPM)))
	}

	api := h.Group("/api/v1")
	api.GET("/health", resumeHandler.Health)
	api.POST("/resume/standardize", resumeHandler.HandleStandardize)
	api.POST("/resume/upload", resumeHandler.HandleUpload)
	api.GET("/resume/:uuid", resumeHandler.HandleGetResume)
	api.GET("/resumes", resumeHandler.HandleListResumes)
	api.GET("/review/unmatched", resumeHandler.HandleReviewLog)
}

// RequestIDMiddleware 透传或生成请求ID，并放入日志上下文
func RequestIDMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		requestID := string(ctx.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set("request_id", requestID)
		ctx.Response.Header.Set(HeaderRequestID, requestID)

		l := logger.Logger.With().Str("request_id", requestID).Logger()
		ctx.Next(l.WithContext(c))
	}
}

// AccessLogMiddleware 记录每个请求的方法、路径、状态码与耗时
func AccessLogMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		status := ctx.Response.StatusCode()
		if status >= consts.StatusInternalServerError {
			tracing.RecordHTTPError(trace.SpanFromContext(c),
				fmt.Errorf("%s %s 返回 %d", ctx.Method(), ctx.Path(), status), status)
		}
		logger.Info().
			Str("request_id", ctx.GetString("request_id")).
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP请求")
	}
}

// RateLimitMiddleware 令牌桶耗尽时直接返回 429
func RateLimitMiddleware(bucket *ratelimit.TokenBucket) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if !bucket.Allow() {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求过于频繁"})
			return
		}
		ctx.Next(c)
	}
}

// APIKeyMiddleware 校验 X-API-Key，健康检查不需要鉴权
func APIKeyMiddleware(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed[k] = struct{}{}
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
			return string(ctx.Path()) == healthPath
		}),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			_, ok := allowed[key]
			return ok, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "API Key 无效或缺失"})
		}),
	)
}
