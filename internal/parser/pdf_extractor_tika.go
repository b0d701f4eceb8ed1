package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-normalizer/pkg/ratelimit"
)

// TikaExtractor 通过 Apache Tika Server 提取 PDF/DOCX 等文档文本
type TikaExtractor struct {
	ServerURL string
	Client    *http.Client

	extractFullMetadata    bool
	extractMinimalMetadata bool
	extractAnnotations     bool
	limiter                *ratelimit.TokenBucket
	logger                 *log.Logger
}

// TikaOption Tika 提取器配置选项
type TikaOption func(*TikaExtractor)

// WithFullMetadata 返回 Tika 的全部元数据
func WithFullMetadata(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractFullMetadata = extract
	}
}

// WithMinimalMetadata 只保留关键元数据
func WithMinimalMetadata(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractMinimalMetadata = extract
	}
}

// WithAnnotations 是否提取 PDF 链接注释文本
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTikaLogger 设置日志
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.logger = logger
	}
}

// WithTimeout 设置 HTTP 超时
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		e.Client.Timeout = timeout
	}
}

// WithRateLimiter 对 Tika 调用限流，并对 5xx/网络错误退避重试
func WithRateLimiter(tb *ratelimit.TokenBucket) TikaOption {
	return func(e *TikaExtractor) {
		e.limiter = tb
	}
}

var _ TextExtractor = (*TikaExtractor)(nil)

// NewTikaExtractor 创建 Tika 提取器，默认 60 秒超时、精简元数据
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	e := &TikaExtractor{
		ServerURL:              strings.TrimRight(serverURL, "/"),
		Client:                 &http.Client{Timeout: 60 * time.Second},
		extractMinimalMetadata: true,
		extractAnnotations:     true,
		logger:                 log.New(os.Stderr, "[Tika] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ExtractTextFromBytes 实现 TextExtractor
func (e *TikaExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	start := time.Now()
	out := mergeMeta(meta)
	out["extractor"] = "tika"
	if _, ok := out["extraction_time"]; !ok {
		out["extraction_time"] = start.Format(time.RFC3339)
	}

	var text string
	err := e.do(ctx, func() error {
		body, err := e.put(ctx, "/tika", data, uri, "text/plain; charset=utf-8")
		if err != nil {
			return err
		}
		text = string(body)
		return nil
	})
	if err != nil {
		e.logger.Printf("Tika 提取失败 %s: %v", uri, err)
		return "", out, err
	}

	out["text_length"] = len(text)
	out["processing_duration_ms"] = time.Since(start).Milliseconds()

	if e.extractFullMetadata || e.extractMinimalMetadata {
		raw, err := e.extractMetadata(ctx, data, uri)
		if err != nil {
			e.logger.Printf("元数据提取失败: %v, 仅返回基本元数据", err)
			return text, out, nil
		}
		for k, v := range raw {
			if e.extractFullMetadata || isImportantMetadata(k) {
				out[k] = v
			}
		}
	}
	return text, out, nil
}

func (e *TikaExtractor) do(ctx context.Context, fn func() error) error {
	if e.limiter == nil {
		return fn()
	}
	return e.limiter.RetryWithBackoff(ctx, fn)
}

func (e *TikaExtractor) put(ctx context.Context, path string, data []byte, uri, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(uri))
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Charset", "utf-8")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", filepath.Base(uri))
	}
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, ratelimit.MarkRetryable(fmt.Errorf("发送请求到Tika服务器失败: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, ratelimit.MarkRetryable(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return body, nil
}

func (e *TikaExtractor) extractMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	body, err := e.put(ctx, "/meta", data, uri, "application/json")
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}

func contentTypeFor(uri string) string {
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/pdf"
	}
}

func isImportantMetadata(key string) bool {
	switch key {
	case "pdf:PDFVersion", "xmpTPg:NPages", "dcterms:created", "language", "pdf:charsPerPage",
		"dc:title", "Content-Type", "pdf:docinfo:title", "pdf:docinfo:created", "pdf:totalUnmappedUnicodeChars":
		return true
	}
	return false
}
