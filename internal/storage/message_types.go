package storage

import "time"

// ResumeUploadMessage 上传接口投递给异步处理的消息
type ResumeUploadMessage struct {
	SubmissionUUID      string    `json:"submission_uuid"`
	SubmissionTimestamp time.Time `json:"submission_timestamp"`
	SourceChannel       string    `json:"source_channel,omitempty"`
	OriginalFilename    string    `json:"original_filename"`
	OriginalFilePathOSS string    `json:"original_file_path_oss"` // MinIO中的对象路径
	RawFileMD5          string    `json:"raw_file_md5,omitempty"` // 失败时用于回滚去重登记
}

// ResumeStandardizedEvent 标准化完成后经 outbox 发布的事件
type ResumeStandardizedEvent struct {
	SubmissionUUID    string    `json:"submission_uuid"`
	TextMD5           string    `json:"text_md5"`
	CanonicalSections []string  `json:"canonical_sections"`
	UnmatchedCount    int       `json:"unmatched_count"`
	Warnings          []string  `json:"warnings,omitempty"`
	NormalizerVersion string    `json:"normalizer_version"`
	OccurredAt        time.Time `json:"occurred_at"`
}
