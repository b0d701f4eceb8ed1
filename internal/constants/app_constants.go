package constants

import "time"

const (
	// NormalizerVersion 写入记录与事件，便于追溯是哪一版规则产出的结果
	NormalizerVersion = "1.0"

	// DefaultRecordCacheTTL 标准化结果在 Redis 中的默认缓存时间
	DefaultRecordCacheTTL = 24 * time.Hour
)

// 提交记录状态
const (
	StatusPendingParsing = "PENDING_PARSING"
	StatusStandardized   = "STANDARDIZED"
	StatusNeedsReview    = "NEEDS_REVIEW" // 有未匹配章节
	StatusFailed         = "FAILED"
)

// EventTypeResumeStandardized outbox 事件类型
const EventTypeResumeStandardized = "resume.standardized"
