package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/types"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口：原始简历、清理后文本与标准化结果
type ObjectStorage interface {
	UploadOriginal(ctx context.Context, submissionUUID, fileExt string, data []byte) (string, error)
	DownloadOriginal(ctx context.Context, objectKey string) ([]byte, error)
	UploadParsedText(ctx context.Context, submissionUUID, text string) (string, error)
	UploadRecord(ctx context.Context, rec *types.ResumeRecord) (string, error)
	GetRecord(ctx context.Context, submissionUUID string) (*types.ResumeRecord, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 基于 minio-go 的对象存储实现
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	recordsBucket  string
	logger         *log.Logger
}

// NewMinIO 创建客户端，确保存储桶存在并设置生命周期
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: orDefault(cfg.OriginalsBucket, "resume-originals"),
		parsedBucket:   orDefault(cfg.ParsedTextBucket, "resume-parsed-text"),
		recordsBucket:  orDefault(cfg.RecordsBucket, "resume-records"),
		logger:         logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, b := range []string{m.originalBucket, m.parsedBucket, m.recordsBucket} {
		if err := m.ensureBucketExists(ctx, b); err != nil {
			return nil, err
		}
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			logger.Printf("[MinIO] 设置生命周期失败 %s: %v", m.originalBucket, err)
		}
	}
	if cfg.ParsedTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.parsedBucket, "expire-parsed-text", cfg.ParsedTextExpireDays); err != nil {
			logger.Printf("[MinIO] 设置生命周期失败 %s: %v", m.parsedBucket, err)
		}
	}

	logger.Printf("[MinIO] 客户端初始化完成: %s", cfg.Endpoint)
	return m, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.cfg.Location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucket, err)
	}
	m.logger.Printf("[MinIO] 已创建存储桶 %s", bucket)
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucket, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{{
		ID:         ruleID,
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(expiryDays)},
	}}
	return m.client.SetBucketLifecycle(ctx, bucket, lc)
}

func (m *MinIO) put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, key, err)
	}
	return nil
}

func (m *MinIO) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, key, err)
	}
	return data, nil
}

// OriginalObjectKey 原始简历对象键，例如 resume/{uuid}/original.pdf
func OriginalObjectKey(submissionUUID, fileExt string) string {
	return fmt.Sprintf("resume/%s/original%s", submissionUUID, strings.ToLower(fileExt))
}

// UploadOriginal 上传原始简历，返回对象键
func (m *MinIO) UploadOriginal(ctx context.Context, submissionUUID, fileExt string, data []byte) (string, error) {
	key := OriginalObjectKey(submissionUUID, fileExt)
	if err := m.put(ctx, m.originalBucket, key, data, ContentTypeForExt(fileExt)); err != nil {
		return "", err
	}
	return key, nil
}

// DownloadOriginal 下载原始简历
func (m *MinIO) DownloadOriginal(ctx context.Context, objectKey string) ([]byte, error) {
	return m.get(ctx, m.originalBucket, objectKey)
}

// UploadParsedText 保存清理后的文本
func (m *MinIO) UploadParsedText(ctx context.Context, submissionUUID, text string) (string, error) {
	key := fmt.Sprintf("resume/%s/parsed_text.txt", submissionUUID)
	if err := m.put(ctx, m.parsedBucket, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return "", err
	}
	return key, nil
}

// UploadRecord 保存标准化结果 JSON
func (m *MinIO) UploadRecord(ctx context.Context, rec *types.ResumeRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("序列化记录失败: %w", err)
	}
	key := fmt.Sprintf("resume/%s/record.json", rec.SubmissionUUID)
	if err := m.put(ctx, m.recordsBucket, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// GetRecord 读取标准化结果
func (m *MinIO) GetRecord(ctx context.Context, submissionUUID string) (*types.ResumeRecord, error) {
	data, err := m.get(ctx, m.recordsBucket, fmt.Sprintf("resume/%s/record.json", submissionUUID))
	if err != nil {
		return nil, err
	}
	var rec types.ResumeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("反序列化记录失败: %w", err)
	}
	return &rec, nil
}

// ContentTypeForExt 根据扩展名返回 MIME 类型
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt", ".md":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
