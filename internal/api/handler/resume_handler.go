package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/constants"
	"resume-normalizer/internal/logger"
	"resume-normalizer/internal/processor"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/types"
	"resume-normalizer/pkg/utils"
)

// 上传结果状态
const (
	UploadStatusSubmitted = "SUBMITTED_FOR_PROCESSING"
	UploadStatusDuplicate = "DUPLICATE_FILE_SKIPPED"
)

var (
	// ErrUploadUnavailable 异步上传所需的存储组件未启用
	ErrUploadUnavailable = errors.New("异步上传不可用：需要启用 MinIO、MySQL 与 RabbitMQ")
	// ErrUnsupportedFile 文件扩展名没有对应的提取器
	ErrUnsupportedFile = errors.New("不支持的文件类型")
)

// UploadDeduper 原始文件去重登记
type UploadDeduper interface {
	CheckAndSetFileMD5(ctx context.Context, md5Hex, submissionUUID string) (bool, string, error)
	RemoveFileMD5(ctx context.Context, md5Hex string) error
}

// OriginalStore 原始文件对象存储
type OriginalStore interface {
	UploadOriginal(ctx context.Context, submissionUUID, fileExt string, data []byte) (string, error)
	DownloadOriginal(ctx context.Context, objectKey string) ([]byte, error)
}

// SubmissionRepository 提交记录读写
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub *models.ResumeSubmission) error
	UpdateProcessingStatus(ctx context.Context, submissionUUID, status string) error
	GetSubmission(ctx context.Context, submissionUUID string) (*models.ResumeSubmission, error)
	ListSubmissions(ctx context.Context, cursor string, size int) ([]models.ResumeSubmission, string, error)
}

// EventPublisher 上传消息发布
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}

// DeliveryConsumer 队列消费
type DeliveryConsumer interface {
	StartConsumer(ctx context.Context, queueName string, prefetchCount, workers int, handler storage.DeliveryHandler) (<-chan struct{}, error)
}

// ReviewLogReader 复核日志读取
type ReviewLogReader interface {
	ReadReviewLog() (types.SectionList, error)
}

// Dependencies 处理器依赖，未启用的组件保持 nil
type Dependencies struct {
	Deduper     UploadDeduper
	Originals   OriginalStore
	Submissions SubmissionRepository
	Publisher   EventPublisher
	Consumer    DeliveryConsumer
	ReviewLog   ReviewLogReader
}

// DependenciesFromStorage 从存储聚合中挑出已启用的组件
func DependenciesFromStorage(s *storage.Storage) Dependencies {
	var d Dependencies
	if s == nil {
		return d
	}
	// 逐个判断，避免把 nil 指针装进非 nil 接口
	if s.Redis != nil {
		d.Deduper = s.Redis
	}
	if s.MinIO != nil {
		d.Originals = s.MinIO
	}
	if s.MySQL != nil {
		d.Submissions = s.MySQL
	}
	if s.RabbitMQ != nil {
		d.Publisher = s.RabbitMQ
		d.Consumer = s.RabbitMQ
	}
	if s.Files != nil {
		d.ReviewLog = s.Files
	}
	return d
}

// ResumeHandler 简历处理器，负责协调同步标准化与异步上传流程
type ResumeHandler struct {
	cfg             *config.Config
	deps            Dependencies
	processorModule *processor.ResumeProcessor
	now             func() time.Time
}

// NewResumeHandler 创建处理器
func NewResumeHandler(cfg *config.Config, deps Dependencies, processorModule *processor.ResumeProcessor) *ResumeHandler {
	return &ResumeHandler{
		cfg:             cfg,
		deps:            deps,
		processorModule: processorModule,
		now:             time.Now,
	}
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	SubmissionUUID string `json:"submission_uuid"`
	Status         string `json:"status"`
}

// UploadEnabled 异步上传链路是否完整
func (h *ResumeHandler) UploadEnabled() bool {
	return h.deps.Originals != nil && h.deps.Submissions != nil && h.deps.Publisher != nil
}

// Standardize 同步处理一段文本
func (h *ResumeHandler) Standardize(ctx context.Context, text, source string) (*types.ResumeRecord, error) {
	return h.processorModule.ProcessText(ctx, processor.ProcessRequest{Source: source, Text: text})
}

// HandleResumeUpload 登记原始文件并投递异步处理消息
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, data []byte, filename, sourceChannel string) (*ResumeUploadResponse, error) {
	if !h.UploadEnabled() {
		return nil, ErrUploadUnavailable
	}
	if ex := h.processorModule.Extractor(); ex == nil || !ex.Supports(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}

	log := logger.Ctx(ctx)
	fileMD5Hex := utils.CalculateMD5(data)

	submissionUUID, err := utils.NewSubmissionUUID()
	if err != nil {
		return nil, fmt.Errorf("生成提交ID失败: %w", err)
	}

	if h.deps.Deduper != nil {
		exists, existingUUID, err := h.deps.Deduper.CheckAndSetFileMD5(ctx, fileMD5Hex, submissionUUID)
		if err != nil {
			log.Error().Err(err).Str("md5", fileMD5Hex).Msg("查询文件MD5去重记录失败")
			return nil, fmt.Errorf("检查文件MD5重复性失败: %w", err)
		}
		if exists {
			log.Info().Str("md5", fileMD5Hex).Str("filename", filename).Str("existing_uuid", existingUUID).
				Msg("检测到重复的文件MD5，跳过处理")
			return &ResumeUploadResponse{SubmissionUUID: existingUUID, Status: UploadStatusDuplicate}, nil
		}
	}

	objectKey, err := h.deps.Originals.UploadOriginal(ctx, submissionUUID, utils.FileExt(filename), data)
	if err != nil {
		h.releaseMD5(ctx, fileMD5Hex)
		return nil, fmt.Errorf("上传简历到对象存储失败: %w", err)
	}

	now := h.now()
	sub := &models.ResumeSubmission{
		SubmissionUUID:      submissionUUID,
		SubmissionTimestamp: now,
		SourceChannel:       sourceChannel,
		OriginalFilename:    filename,
		OriginalFilePathOSS: objectKey,
		RawFileMD5:          fileMD5Hex,
		ProcessingStatus:    constants.StatusPendingParsing,
		NormalizerVersion:   constants.NormalizerVersion,
	}
	if err := h.deps.Submissions.CreateSubmission(ctx, sub); err != nil {
		h.releaseMD5(ctx, fileMD5Hex)
		return nil, fmt.Errorf("写入提交记录失败: %w", err)
	}

	message := storage.ResumeUploadMessage{
		SubmissionUUID:      submissionUUID,
		SubmissionTimestamp: now,
		SourceChannel:       sourceChannel,
		OriginalFilename:    filename,
		OriginalFilePathOSS: objectKey,
		RawFileMD5:          fileMD5Hex,
	}
	if err := h.deps.Publisher.PublishJSON(ctx, h.cfg.RabbitMQ.ResumeEventsExchange, h.cfg.RabbitMQ.UploadedRoutingKey, message, true); err != nil {
		h.markFailed(ctx, submissionUUID)
		h.releaseMD5(ctx, fileMD5Hex)
		return nil, fmt.Errorf("发布上传消息失败: %w", err)
	}

	log.Info().Str("submission_uuid", submissionUUID).Str("object_key", objectKey).Msg("简历已提交异步处理")
	return &ResumeUploadResponse{SubmissionUUID: submissionUUID, Status: UploadStatusSubmitted}, nil
}

// StartResumeUploadConsumer 启动上传队列消费者
func (h *ResumeHandler) StartResumeUploadConsumer(ctx context.Context) (<-chan struct{}, error) {
	if h.deps.Consumer == nil || h.deps.Originals == nil {
		return nil, ErrUploadUnavailable
	}
	mq := h.cfg.RabbitMQ
	logger.Info().
		Str("exchange", mq.ResumeEventsExchange).
		Str("queue", mq.UploadQueue).
		Int("prefetch", mq.PrefetchCount).
		Int("workers", mq.ConsumerWorkers).
		Msg("简历上传消费者就绪")

	done, err := h.deps.Consumer.StartConsumer(ctx, mq.UploadQueue, mq.PrefetchCount, mq.ConsumerWorkers, h.HandleUploadDelivery)
	if err != nil {
		return nil, fmt.Errorf("启动消费者失败: %w", err)
	}
	return done, nil
}

// HandleUploadDelivery 处理一条上传消息。
// 下载失败属于临时错误，重新入队；格式错误或提取、标准化失败则标记为 FAILED 并确认
func (h *ResumeHandler) HandleUploadDelivery(ctx context.Context, body []byte) bool {
	var message storage.ResumeUploadMessage
	if err := json.Unmarshal(body, &message); err != nil || message.SubmissionUUID == "" {
		logger.Error().Err(err).Str("body", truncate(string(body), 200)).Msg("解析上传消息失败，丢弃")
		return true
	}
	log := logger.Ctx(ctx).With().Str("submission_uuid", message.SubmissionUUID).Logger()

	data, err := h.deps.Originals.DownloadOriginal(ctx, message.OriginalFilePathOSS)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Error().Err(err).Str("object_key", message.OriginalFilePathOSS).Msg("原始文件不存在")
			h.fail(ctx, message)
			return true
		}
		log.Warn().Err(err).Msg("下载原始文件失败，稍后重试")
		return false
	}

	rec, err := h.processorModule.ProcessDocument(ctx, data, message.OriginalFilename, message.SubmissionUUID)
	if err != nil {
		log.Error().Err(err).Msg("处理简历失败")
		h.fail(ctx, message)
		return true
	}
	log.Info().Int("unmatched", len(rec.Unmatched)).Int("warnings", len(rec.Warnings)).Msg("简历标准化完成")
	return true
}

// GetRecord 读取已持久化的标准化结果
func (h *ResumeHandler) GetRecord(ctx context.Context, submissionUUID string) (*types.ResumeRecord, string, error) {
	if h.deps.Submissions == nil {
		return nil, "", ErrUploadUnavailable
	}
	sub, err := h.deps.Submissions.GetSubmission(ctx, submissionUUID)
	if err != nil {
		return nil, "", err
	}
	rec, err := storage.SubmissionToRecord(sub)
	if err != nil {
		return nil, "", err
	}
	return rec, sub.ProcessingStatus, nil
}

// ReviewLog 最近一次运行的未匹配章节
func (h *ResumeHandler) ReviewLog() (types.SectionList, error) {
	if h.deps.ReviewLog == nil {
		return types.SectionList{}, nil
	}
	return h.deps.ReviewLog.ReadReviewLog()
}

func (h *ResumeHandler) fail(ctx context.Context, message storage.ResumeUploadMessage) {
	h.markFailed(ctx, message.SubmissionUUID)
	h.releaseMD5(ctx, message.RawFileMD5)
}

func (h *ResumeHandler) markFailed(ctx context.Context, submissionUUID string) {
	if h.deps.Submissions == nil {
		return
	}
	if err := h.deps.Submissions.UpdateProcessingStatus(ctx, submissionUUID, constants.StatusFailed); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("submission_uuid", submissionUUID).Msg("更新提交状态为FAILED失败")
	}
}

// releaseMD5 撤销去重登记，同一文件可以重新上传
func (h *ResumeHandler) releaseMD5(ctx context.Context, md5Hex string) {
	if h.deps.Deduper == nil || md5Hex == "" {
		return
	}
	if err := h.deps.Deduper.RemoveFileMD5(ctx, md5Hex); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("md5", md5Hex).Msg("撤销文件MD5登记失败")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
