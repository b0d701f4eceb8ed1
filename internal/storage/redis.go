package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/constants"
	"resume-normalizer/internal/tracing"
	"resume-normalizer/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound 缓存未命中
var ErrNotFound = errors.New("not found")

var redisTracer = otel.Tracer("resume-normalizer/storage/redis")

// 原子地检查并登记 MD5，首次登记时写入 MD5 -> UUID 映射
const checkAndSetMD5Script = `
local added = redis.call('SADD', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
if added == 1 then
	redis.call('SET', KEYS[2], ARGV[2], 'EX', ARGV[3])
	return {0, ARGV[2]}
end
local existing = redis.call('GET', KEYS[2])
if not existing then existing = '' end
return {1, existing}
`

// Redis 封装 go-redis 客户端：上传去重与标准化结果缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建连接并挂载 OpenTelemetry 钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.MaxRetries,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 健康检查
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// MD5ExpireDuration 去重记录过期时间
func (r *Redis) MD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// RecordCacheTTL 标准化结果缓存时间
func (r *Redis) RecordCacheTTL() time.Duration {
	if r.config.RecordCacheTTLHours <= 0 {
		return constants.DefaultRecordCacheTTL
	}
	return time.Duration(r.config.RecordCacheTTLHours) * time.Hour
}

func (r *Redis) startSpan(ctx context.Context, name, op, key string) (context.Context, trace.Span) {
	ctx, span := redisTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.operation", op),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		attribute.String("net.peer.name", r.config.Address),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// CheckAndSetFileMD5 原子地登记上传文件的 MD5。
// 已存在时返回 true 与首次提交的 submissionUUID
func (r *Redis) CheckAndSetFileMD5(ctx context.Context, md5Hex, submissionUUID string) (exists bool, existingUUID string, err error) {
	ctx, span := r.startSpan(ctx, "Redis.CheckAndSetFileMD5", "EVAL", constants.KeyFileMD5Set)
	defer func() { endSpan(span, err) }()

	mapKey := fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex)
	res, err := r.Client.Eval(ctx, checkAndSetMD5Script,
		[]string{constants.KeyFileMD5Set, mapKey},
		md5Hex, submissionUUID, int64(r.MD5ExpireDuration().Seconds()),
	).Slice()
	if err != nil {
		return false, "", fmt.Errorf("执行原子检查和添加操作失败: %w", err)
	}
	if len(res) != 2 {
		return false, "", fmt.Errorf("意外的Redis返回: %v", res)
	}

	flag, _ := res[0].(int64)
	uuid, _ := res[1].(string)
	exists = flag == 1
	span.SetAttributes(attribute.Bool("already_exists", exists))
	if exists {
		return true, uuid, nil
	}
	return false, "", nil
}

// RemoveFileMD5 上传失败时回滚去重登记
func (r *Redis) RemoveFileMD5(ctx context.Context, md5Hex string) (err error) {
	ctx, span := r.startSpan(ctx, "Redis.RemoveFileMD5", "SREM", constants.KeyFileMD5Set)
	defer func() { endSpan(span, err) }()

	pipe := r.Client.TxPipeline()
	pipe.SRem(ctx, constants.KeyFileMD5Set, md5Hex)
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex))
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("从集合中移除MD5失败: %w", err)
	}
	return nil
}

// GetRecord 读取缓存的标准化结果，未命中返回 ErrNotFound
func (r *Redis) GetRecord(ctx context.Context, cacheKey string) (rec *types.ResumeRecord, err error) {
	key := fmt.Sprintf(constants.KeyResumeRecord, cacheKey)
	ctx, span := r.startSpan(ctx, "Redis.GetRecord", "GET", key)
	defer func() {
		if errors.Is(err, ErrNotFound) {
			span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			endSpan(span, nil)
			return
		}
		endSpan(span, err)
	}()

	val, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取缓存失败: %w", err)
	}

	var out types.ResumeRecord
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("反序列化缓存记录失败: %w", err)
	}
	return &out, nil
}

// PutRecord 缓存标准化结果
func (r *Redis) PutRecord(ctx context.Context, cacheKey string, rec *types.ResumeRecord) (err error) {
	key := fmt.Sprintf(constants.KeyResumeRecord, cacheKey)
	ctx, span := r.startSpan(ctx, "Redis.PutRecord", "SET", key)
	defer func() { endSpan(span, err) }()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}
	span.SetAttributes(attribute.Int("db.redis.value_length", len(data)))
	if err = r.Client.Set(ctx, key, data, r.RecordCacheTTL()).Err(); err != nil {
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}
