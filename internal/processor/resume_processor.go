package processor

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
	"resume-normalizer/internal/parser"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/tracing"
	"resume-normalizer/internal/types"
	"resume-normalizer/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var processorTracer = otel.Tracer("resume-normalizer/processor")

// Components 功能组件。Extractor、Cache、Archive、Repository 可以为 nil
type Components struct {
	Extractor    DocumentExtractor
	Segmenter    *parser.SectionSegmenter
	Standardizer *parser.SectionStandardizer
	Files        LocalStore
	Cache        RecordCache
	Archive      RecordArchive
	Repository   RecordRepository
}

// Settings 纯配置项
type Settings struct {
	RequiredSections []string // 追加在默认必需章节之后
	CleanText        bool
	EventExchange    string
	EventRoutingKey  string
	Now              func() time.Time
	NewID            func() (string, error)
}

// ResumeProcessor 串联清理、分段、标准化、校验与持久化
type ResumeProcessor struct {
	comp Components
	set  Settings

	// 缓存键前缀：规则版本 + 分段与同义词规则的摘要，规则变化后旧缓存不再命中
	cachePrefix string
}

// ProcessRequest 一次标准化请求
type ProcessRequest struct {
	SubmissionUUID string // 为空时自动生成
	Source         string // 文件名或来源描述
	Text           string
}

// NewComponents 由组件选项构建 Components
func NewComponents(opts ...ComponentOpt) Components {
	var c Components
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewResumeProcessor 创建处理器。未提供的分段器与标准化器使用默认规则，
// 未提供本地存储时不写任何文件
func NewResumeProcessor(comp Components, set Settings, opts ...SettingOpt) (*ResumeProcessor, error) {
	for _, opt := range opts {
		opt(&set)
	}

	if comp.Files == nil {
		comp.Files = storage.NewFileStore(config.NormalizerConfig{})
	}
	if comp.Segmenter == nil {
		comp.Segmenter = parser.NewSectionSegmenter()
	}
	if comp.Standardizer == nil {
		std, err := parser.NewSectionStandardizer(nil)
		if err != nil {
			return nil, err
		}
		comp.Standardizer = std
	}
	if set.Now == nil {
		set.Now = time.Now
	}
	if set.NewID == nil {
		set.NewID = utils.NewSubmissionUUID
	}
	if _, unknown := parser.MergeRequiredSections(parser.DefaultRequiredSections, set.RequiredSections); len(unknown) > 0 {
		logger.Warn().Strs("unknown", unknown).Msg("配置的必需章节不是标准章节，已忽略")
	}
	rulesDigest := utils.CalculateTextMD5(comp.Segmenter.Fingerprint() + "#" + comp.Standardizer.Fingerprint())
	return &ResumeProcessor{
		comp:        comp,
		set:         set,
		cachePrefix: constants.NormalizerVersion + ":" + rulesDigest[:12],
	}, nil
}

// Extractor 当前的文档提取器
func (p *ResumeProcessor) Extractor() DocumentExtractor {
	return p.comp.Extractor
}

// ProcessDocument 提取文档文本后执行 ProcessText
func (p *ResumeProcessor) ProcessDocument(ctx context.Context, data []byte, filename, submissionUUID string) (*types.ResumeRecord, error) {
	if p.comp.Extractor == nil {
		return nil, NewExtractError(submissionUUID, errors.New("未配置文档提取器"))
	}

	ctx, span := processorTracer.Start(ctx, "ResumeProcessor.ProcessDocument",
		trace.WithAttributes(
			attribute.String("resume.source", filename),
			attribute.Int("resume.size_bytes", len(data)),
		))
	defer span.End()

	text, meta, err := p.comp.Extractor.Extract(ctx, data, filename, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, NewExtractError(submissionUUID, err)
	}
	if extractor, ok := meta["extractor"].(string); ok {
		span.SetAttributes(attribute.String("resume.extractor", extractor))
	}

	rec, err := p.ProcessText(ctx, ProcessRequest{SubmissionUUID: submissionUUID, Source: filename, Text: text})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return rec, nil
}

// ProcessText 对文本执行完整流程并返回标准化记录。
// 复核日志每次都会被覆盖，即使本次没有未匹配章节
func (p *ResumeProcessor) ProcessText(ctx context.Context, req ProcessRequest) (*types.ResumeRecord, error) {
	submissionUUID := req.SubmissionUUID
	if submissionUUID == "" {
		id, err := p.set.NewID()
		if err != nil {
			return nil, fmt.Errorf("生成提交ID失败: %w", err)
		}
		submissionUUID = id
	}

	ctx, span := processorTracer.Start(ctx, "ResumeProcessor.ProcessText",
		trace.WithAttributes(attribute.String("resume.submission_uuid", submissionUUID)))
	defer span.End()
	log := logger.Ctx(ctx).With().Str("submission_uuid", submissionUUID).Logger()

	text := req.Text
	if p.set.CleanText {
		text = parser.CleanExtractedText(text)
	}
	if strings.TrimSpace(text) == "" {
		tracing.RecordError(span, ErrEmptyText, tracing.ErrorTypeValidation)
		return nil, newProcessError(submissionUUID, "validate", ErrEmptyText, nil)
	}
	textMD5 := utils.CalculateTextMD5(text)
	span.SetAttributes(attribute.String("resume.text_md5", textMD5))

	rec := p.lookupCache(ctx, p.cacheKey(textMD5))
	if rec != nil {
		span.SetAttributes(attribute.Bool("resume.cache_hit", true))
		log.Debug().Str("text_md5", textMD5).Msg("命中标准化结果缓存")
	} else {
		rec = p.normalize(text)
	}
	rec.SubmissionUUID = submissionUUID
	rec.Source = req.Source
	rec.TextMD5 = textMD5
	rec.ProcessedAt = p.set.Now()
	span.SetAttributes(tracing.ContactAttributes(rec.ContactInfo)...)

	schema := p.comp.Files.LoadSchema()
	if schema.Fallback {
		log.Debug().Msg("使用空schema模板")
	}
	rec.Warnings = p.warnings(rec, schema.Required)

	if err := p.comp.Files.WriteReviewLog(types.SectionList(rec.Unmatched)); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, NewPersistError(submissionUUID, err)
	}
	if path, err := p.comp.Files.WriteRecord(rec); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, NewPersistError(submissionUUID, err)
	} else if path != "" {
		log.Debug().Str("path", path).Msg("标准化结果已写入")
	}

	if err := p.persist(ctx, rec, text); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("resume.sections", len(rec.Sections)),
		attribute.Int("resume.unmatched", len(rec.Unmatched)),
		attribute.Int("resume.warnings", len(rec.Warnings)),
	)
	for _, w := range rec.Warnings {
		log.Warn().Msg(w)
	}
	if len(rec.Unmatched) > 0 {
		names := make([]string, len(rec.Unmatched))
		for i, u := range rec.Unmatched {
			names[i] = u.Name
		}
		log.Info().Strs("sections", names).Msg("存在未匹配章节，已写入复核日志")
	}
	span.SetStatus(codes.Ok, "")
	return rec, nil
}

// normalize 纯计算部分：联系方式、分段与标准化
func (p *ResumeProcessor) normalize(text string) *types.ResumeRecord {
	sections := p.comp.Segmenter.Segment(text)
	result := p.comp.Standardizer.Standardize(sections)
	return &types.ResumeRecord{
		ContactInfo:  parser.ExtractContactInfo(text),
		Sections:     sections,
		Standardized: result.Sections,
		Unmatched:    result.Unmatched,
	}
}

// warnings 空章节告警在前，必需章节缺失告警在后。每次按当前 schema 重新计算
func (p *ResumeProcessor) warnings(rec *types.ResumeRecord, schemaRequired []string) []string {
	warnings := parser.EmptySectionWarnings(rec.Sections)

	extra := append(append([]string{}, p.set.RequiredSections...), schemaRequired...)
	required, _ := parser.MergeRequiredSections(parser.DefaultRequiredSections, extra)
	if missing := parser.ValidateRequiredSections(rec.Standardized, required); len(missing) > 0 {
		warnings = append(warnings, parser.MissingSectionsWarning(missing))
	}
	return warnings
}

// StandardizeSections 只做章节名标准化，并覆盖复核日志
func (p *ResumeProcessor) StandardizeSections(sections []types.RawSection) (parser.StandardizeResult, error) {
	result := p.comp.Standardizer.Standardize(sections)
	if err := p.comp.Files.WriteReviewLog(result.UnmatchedLog()); err != nil {
		return result, NewPersistError("", err)
	}
	return result, nil
}

// cacheKey 文本 MD5 加上规则前缀
func (p *ResumeProcessor) cacheKey(textMD5 string) string {
	return p.cachePrefix + ":" + textMD5
}

func (p *ResumeProcessor) lookupCache(ctx context.Context, key string) *types.ResumeRecord {
	if p.comp.Cache == nil {
		return nil
	}
	rec, err := p.comp.Cache.GetRecord(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Ctx(ctx).Warn().Err(err).Msg("读取结果缓存失败，重新计算")
		}
		return nil
	}
	return rec
}

// persist 写入可选的外部存储。缓存与归档失败只记录告警，数据库失败返回错误
func (p *ResumeProcessor) persist(ctx context.Context, rec *types.ResumeRecord, text string) error {
	log := logger.Ctx(ctx)

	if p.comp.Cache != nil {
		if err := p.comp.Cache.PutRecord(ctx, p.cacheKey(rec.TextMD5), rec); err != nil {
			log.Warn().Err(err).Msg("写入结果缓存失败")
		}
	}

	if p.comp.Archive != nil {
		if _, err := p.comp.Archive.UploadParsedText(ctx, rec.SubmissionUUID, text); err != nil {
			log.Warn().Err(NewArchiveError(rec.SubmissionUUID, err)).Msg("归档解析文本失败")
		}
		if _, err := p.comp.Archive.UploadRecord(ctx, rec); err != nil {
			log.Warn().Err(NewArchiveError(rec.SubmissionUUID, err)).Msg("归档标准化结果失败")
		}
	}

	if p.comp.Repository == nil {
		return nil
	}
	status := constants.StatusStandardized
	if len(rec.Unmatched) > 0 {
		status = constants.StatusNeedsReview
	}
	sub, err := storage.RecordToSubmission(rec, status)
	if err != nil {
		return NewDatabaseError(rec.SubmissionUUID, err)
	}
	var msgs []*models.OutboxMessage
	if p.set.EventExchange != "" {
		msg, err := NewStandardizedOutboxMessage(rec, p.set.EventExchange, p.set.EventRoutingKey, p.set.Now())
		if err != nil {
			return NewDatabaseError(rec.SubmissionUUID, err)
		}
		msgs = append(msgs, msg)
	}
	if err := p.comp.Repository.SaveRecordWithOutbox(ctx, sub, msgs...); err != nil {
		return NewDatabaseError(rec.SubmissionUUID, err)
	}
	return nil
}

// NewStandardizedOutboxMessage 构造标准化完成事件的 outbox 消息
func NewStandardizedOutboxMessage(rec *types.ResumeRecord, exchange, routingKey string, now time.Time) (*models.OutboxMessage, error) {
	present := rec.Standardized.Present()
	canonical := make([]string, len(present))
	for i, c := range present {
		canonical[i] = string(c)
	}
	event := storage.ResumeStandardizedEvent{
		SubmissionUUID:    rec.SubmissionUUID,
		TextMD5:           rec.TextMD5,
		CanonicalSections: canonical,
		UnmatchedCount:    len(rec.Unmatched),
		Warnings:          rec.Warnings,
		NormalizerVersion: constants.NormalizerVersion,
		OccurredAt:        now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化标准化事件失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      rec.SubmissionUUID,
		EventType:        constants.EventTypeResumeStandardized,
		Payload:          string(payload),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxStatusPending,
	}, nil
}
