package processor

import (
	"context"

	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/types"
)

// DocumentExtractor 按文件名选择提取器，把文档转换为纯文本
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, filename string, meta map[string]interface{}) (string, map[string]interface{}, error)
	Supports(filename string) bool
}

// LocalStore 本地文件：schema、复核日志与结果文件
type LocalStore interface {
	LoadSchema() storage.ResumeSchema
	WriteReviewLog(unmatched types.SectionList) error
	WriteRecord(rec *types.ResumeRecord) (string, error)
}

// RecordCache 缓存标准化结果，键由规则版本与清理后文本的 MD5 组成
type RecordCache interface {
	GetRecord(ctx context.Context, cacheKey string) (*types.ResumeRecord, error)
	PutRecord(ctx context.Context, cacheKey string, rec *types.ResumeRecord) error
}

// RecordArchive 对象存储中的结果归档
type RecordArchive interface {
	UploadParsedText(ctx context.Context, submissionUUID, text string) (string, error)
	UploadRecord(ctx context.Context, rec *types.ResumeRecord) (string, error)
}

// RecordRepository 关系库中的提交记录，结果与 outbox 事件同事务写入
type RecordRepository interface {
	SaveRecordWithOutbox(ctx context.Context, sub *models.ResumeSubmission, msgs ...*models.OutboxMessage) error
}

var (
	_ LocalStore       = (*storage.FileStore)(nil)
	_ RecordCache      = (*storage.Redis)(nil)
	_ RecordArchive    = (*storage.MinIO)(nil)
	_ RecordRepository = (*storage.MySQL)(nil)
)
