package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ledongthuc/pdf"
)

// LedongthucPDFExtractor 纯 Go 的 PDF 文本提取，不依赖外部服务
type LedongthucPDFExtractor struct{}

var _ TextExtractor = LedongthucPDFExtractor{}

// NewLedongthucPDFExtractor 创建提取器
func NewLedongthucPDFExtractor() LedongthucPDFExtractor {
	return LedongthucPDFExtractor{}
}

// ExtractTextFromBytes 实现 TextExtractor
func (LedongthucPDFExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, meta map[string]interface{}) (text string, out map[string]interface{}, err error) {
	start := time.Now()
	out = mergeMeta(meta)
	out["extractor"] = "ledongthuc"

	// 库在遇到损坏的 PDF 时可能 panic
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("解析PDF %s 时发生panic: %v", uri, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", out, fmt.Errorf("打开PDF %s 失败: %w", uri, err)
	}
	if err := ctx.Err(); err != nil {
		return "", out, err
	}

	rs, err := r.GetPlainText()
	if err != nil {
		return "", out, fmt.Errorf("提取PDF文本 %s 失败: %w", uri, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return "", out, fmt.Errorf("读取PDF文本 %s 失败: %w", uri, err)
	}

	text = buf.String()
	out["page_count"] = r.NumPage()
	out["text_length"] = len(text)
	out["processing_duration_ms"] = time.Since(start).Milliseconds()
	return text, out, nil
}
