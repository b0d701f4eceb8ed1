package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/logger"
	"resume-normalizer/internal/types"

	"github.com/tidwall/gjson"
)

// EmptySchemaTemplate schema 文件缺失或损坏时使用
const EmptySchemaTemplate = `{"title":"Resume Schema","type":"object","properties":{}}`

// ResumeSchema 已加载的 schema。Raw 保留原始 JSON，Required 为其中的 required 数组
type ResumeSchema struct {
	Raw      json.RawMessage
	Required []string
	Fallback bool // 使用了空模板
}

// FileStore 本地文件持久化：schema、复核日志与标准化结果
type FileStore struct {
	schemaPath    string
	reviewLogPath string
	outputDir     string
	mu            sync.Mutex // 复核日志每次整体覆盖，写入需串行
}

// NewFileStore 按配置创建文件存储
func NewFileStore(cfg config.NormalizerConfig) *FileStore {
	return &FileStore{
		schemaPath:    cfg.SchemaPath,
		reviewLogPath: cfg.ReviewLogPath,
		outputDir:     cfg.OutputDir,
	}
}

// ReviewLogPath 复核日志路径
func (f *FileStore) ReviewLogPath() string { return f.reviewLogPath }

// LoadSchema 读取 schema 文件。文件缺失或不是合法 JSON 对象时返回空模板，不视为错误
func (f *FileStore) LoadSchema() ResumeSchema {
	fallback := ResumeSchema{Raw: json.RawMessage(EmptySchemaTemplate), Fallback: true}
	if f.schemaPath == "" {
		return fallback
	}

	data, err := os.ReadFile(f.schemaPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", f.schemaPath).Msg("读取schema文件失败，使用空模板")
		} else {
			logger.Debug().Str("path", f.schemaPath).Msg("schema文件不存在，使用空模板")
		}
		return fallback
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		logger.Warn().Str("path", f.schemaPath).Msg("schema文件格式错误，使用空模板")
		return fallback
	}

	schema := ResumeSchema{Raw: json.RawMessage(data)}
	gjson.GetBytes(data, "required").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String && v.Str != "" {
			schema.Required = append(schema.Required, v.Str)
		}
		return true
	})
	return schema
}

// SaveSchema 以缩进格式写入 schema
func (f *FileStore) SaveSchema(raw []byte) error {
	if f.schemaPath == "" {
		return fmt.Errorf("schema路径未配置")
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("schema不是合法的JSON")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return fmt.Errorf("格式化schema失败: %w", err)
	}
	return writeFileAtomic(f.schemaPath, buf.Bytes())
}

// BuildSchema 生成每个标准章节为字符串数组的 schema
func BuildSchema(sections []types.CanonicalSection, required []string) ([]byte, error) {
	props := make(map[string]interface{}, len(sections))
	for _, s := range sections {
		props[string(s)] = map[string]interface{}{
			"type":  "array",
			"items": map[string]string{"type": "string"},
		}
	}
	doc := map[string]interface{}{
		"title":      "Resume Schema",
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return json.MarshalIndent(doc, "", "    ")
}

// WriteReviewLog 覆盖写入本次运行的未匹配章节，保持出现顺序，没有未匹配时写入空对象
func (f *FileStore) WriteReviewLog(unmatched types.SectionList) error {
	if f.reviewLogPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(unmatched, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化复核日志失败: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return writeFileAtomic(f.reviewLogPath, data)
}

// ReadReviewLog 读取最近一次运行的复核日志，文件不存在时返回空
func (f *FileStore) ReadReviewLog() (types.SectionList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := types.SectionList{}
	if f.reviewLogPath == "" {
		return out, nil
	}
	data, err := os.ReadFile(f.reviewLogPath)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取复核日志失败: %w", err)
	}
	if out, err = types.ParseSections(data); err != nil {
		return nil, fmt.Errorf("解析复核日志失败: %w", err)
	}
	return out, nil
}

// WriteRecord 把标准化结果写到 <output_dir>/<uuid>.json，返回文件路径
func (f *FileStore) WriteRecord(rec *types.ResumeRecord) (string, error) {
	if f.outputDir == "" {
		return "", nil
	}
	if rec.SubmissionUUID == "" {
		return "", fmt.Errorf("记录缺少submission_uuid")
	}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", fmt.Errorf("序列化标准化结果失败: %w", err)
	}
	path := filepath.Join(f.outputDir, rec.SubmissionUUID+".json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic 先写临时文件再重命名，读者不会看到写了一半的文件
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	// CreateTemp 默认 0600
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("设置 %s 权限失败: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("重命名 %s 失败: %w", path, err)
	}
	return nil
}
