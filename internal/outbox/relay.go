package outbox // 发件箱模式：标准化结果与事件同事务落库，由中继异步发布

import (
	"context"
	"log"
	"sync"
	"time"

	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/tracing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetryCount   = 5
)

// Publisher 消息发布器，storage.RabbitMQ 满足该接口
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// Option 中继配置选项
type Option func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置每批处理的消息数
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxRetries 设置发布失败的最大重试次数
func WithMaxRetries(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          *log.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	tracer          trace.Tracer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, logger *log.Logger, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetryCount,
		tracer:          otel.Tracer("outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台开始轮询，ctx 取消或调用 Stop 时退出
func (r *MessageRelay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.logger.Printf("MessageRelay starting, interval=%s batch=%d", r.pollingInterval, r.batchSize)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.pollingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Println("MessageRelay stopped.")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(ctx); err != nil && ctx.Err() == nil {
					r.logger.Printf("Error processing pending messages: %v", err)
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束
func (r *MessageRelay) Stop() {
	r.logger.Println("MessageRelay stopping...")
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// processPendingMessages 取出一批待发布消息并逐条发布
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	// 空轮询不创建 span
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 让多个实例可以并行中继而不重复发布
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		r.logger.Printf("Failed to fetch pending outbox messages: %v", err)
		return err
	}
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	r.logger.Printf("Fetched %d pending messages to process.", len(messages))

	for i := range messages {
		msg := &messages[i]
		pubErr := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if pubErr != nil {
			r.logger.Printf("Failed to publish message ID %d (AggregateID: %s): %v. Retries: %d", msg.ID, msg.AggregateID, pubErr, msg.RetryCount+1)
			tracing.RecordError(span, pubErr, tracing.ErrorTypeRabbitMQ,
				attribute.String("outbox.aggregate_id", msg.AggregateID))
		}
		applyPublishResult(msg, pubErr, r.maxRetries, time.Now())

		if err := tx.Save(msg).Error; err != nil {
			// 整个事务回滚，消息在下一轮重新拾取
			r.logger.Printf("Failed to update outbox message ID %d: %v", msg.ID, err)
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return err
		}
	}

	return tx.Commit().Error
}

// applyPublishResult 根据发布结果更新消息状态
func applyPublishResult(msg *models.OutboxMessage, pubErr error, maxRetries int, now time.Time) {
	if pubErr != nil {
		msg.RetryCount++
		msg.ErrorMessage = pubErr.Error()
		if msg.RetryCount >= maxRetries {
			msg.Status = models.OutboxStatusFailed
		}
		return
	}
	msg.Status = models.OutboxStatusSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
