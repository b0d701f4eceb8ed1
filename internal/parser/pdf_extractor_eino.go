package parser

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	logger  *log.Logger
	timeout time.Duration
}

// EinoPDFOption Eino 提取器配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 设置日志
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = logger
	}
}

// WithEinoTimeout 设置单个文档的解析超时
func WithEinoTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

var _ TextExtractor = (*EinoPDFTextExtractor)(nil)

// NewEinoPDFTextExtractor 创建提取器。不按页拆分，整份 PDF 作为一段连续文本
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("创建 Eino PDF 解析器失败: %w", err)
	}

	e := &EinoPDFTextExtractor{
		parser:  p,
		logger:  log.New(os.Stderr, "[EinoPDF] ", log.LstdFlags),
		timeout: 30 * time.Second,
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractTextFromBytes 实现 TextExtractor
func (e *EinoPDFTextExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	start := time.Now()
	extraMeta := mergeMeta(meta)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(extraMeta),
	)
	duration := time.Since(start)
	if err != nil {
		e.logger.Printf("PDF 解析失败 %s: %v (用时 %.2f秒)", uri, err, duration.Seconds())
		return "", extraMeta, fmt.Errorf("eino PDF parser failed for %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", extraMeta, fmt.Errorf("%w: eino 未返回任何文档 (%s)", ErrEmptyDocument, uri)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	text := strings.Join(parts, "\n")

	out := make(map[string]interface{})
	for k, v := range docs[0].MetaData {
		out[k] = v
	}
	for k, v := range extraMeta {
		out[k] = v
	}
	out["extractor"] = "eino"
	out["document_count"] = len(docs)
	out["text_length"] = len(text)
	out["processing_duration_ms"] = duration.Milliseconds()

	e.logger.Printf("PDF 提取完成 %s: %d 个字符 (用时 %.2f秒)", uri, len(text), duration.Seconds())
	return text, out, nil
}
