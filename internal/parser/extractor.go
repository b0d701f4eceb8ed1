package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TextExtractor 从文档字节中提取纯文本与元数据
type TextExtractor interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error)
}

// ExtractorRegistry 按文件扩展名选择提取器
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors map[string]TextExtractor
}

// NewExtractorRegistry 创建注册表，预置纯文本提取器
func NewExtractorRegistry() *ExtractorRegistry {
	r := &ExtractorRegistry{extractors: make(map[string]TextExtractor)}
	plain := PlainTextExtractor{}
	r.Register(".txt", plain)
	r.Register(".md", plain)
	return r
}

// Register 注册（或替换）某个扩展名的提取器，扩展名不区分大小写
func (r *ExtractorRegistry) Register(ext string, x TextExtractor) {
	ext = normalizeExt(ext)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[ext] = x
}

// Lookup 返回文件名对应的提取器
func (r *ExtractorRegistry) Lookup(filename string) (TextExtractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	x, ok := r.extractors[normalizeExt(filepath.Ext(filename))]
	return x, ok
}

// Supports 是否支持该文件类型
func (r *ExtractorRegistry) Supports(filename string) bool {
	_, ok := r.Lookup(filename)
	return ok
}

// Extract 根据文件名选择提取器并提取文本
func (r *ExtractorRegistry) Extract(ctx context.Context, data []byte, filename string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	x, ok := r.Lookup(filename)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	return x.ExtractTextFromBytes(ctx, data, filename, meta)
}

// ExtractFile 读取本地文件并提取文本
func (r *ExtractorRegistry) ExtractFile(ctx context.Context, path string) (string, map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("读取文件 %s 失败: %w", path, err)
	}
	meta := map[string]interface{}{
		"source_file_path": path,
		"extraction_time":  time.Now().Format(time.RFC3339),
	}
	return r.Extract(ctx, data, filepath.Base(path), meta)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// PlainTextExtractor 直接把字节当作 UTF-8 文本
type PlainTextExtractor struct{}

// ExtractTextFromBytes 实现 TextExtractor
func (PlainTextExtractor) ExtractTextFromBytes(_ context.Context, data []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	out := mergeMeta(meta)
	out["text_length"] = len(data)
	out["extractor"] = "plain"
	return string(data), out, nil
}

// mergeMeta 复制调用方元数据，始终返回非 nil map
func mergeMeta(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+4)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
