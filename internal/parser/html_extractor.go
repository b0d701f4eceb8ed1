package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const htmlBlockSelector = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, td, th, pre"

// HTMLExtractor 处理 HTML 格式的简历（在线简历导出、邮件正文）
// 先用 bluemonday 去掉脚本等不可信内容，再用 goquery 按块级元素取文本
type HTMLExtractor struct {
	policy *bluemonday.Policy
}

var _ TextExtractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor 创建提取器
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{policy: bluemonday.UGCPolicy()}
}

// ExtractTextFromBytes 实现 TextExtractor
func (e *HTMLExtractor) ExtractTextFromBytes(_ context.Context, data []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	start := time.Now()
	out := mergeMeta(meta)
	out["extractor"] = "html"

	sanitized := e.policy.SanitizeBytes(data)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(sanitized))
	if err != nil {
		return "", out, fmt.Errorf("解析HTML %s 失败: %w", uri, err)
	}

	var blocks []string
	doc.Find(htmlBlockSelector).Each(func(_ int, s *goquery.Selection) {
		// 嵌套块只取最内层，避免重复
		if s.Find(htmlBlockSelector).Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			blocks = append(blocks, t)
		}
	})

	text := strings.Join(blocks, "\n")
	if text == "" {
		text = strings.Join(strings.Fields(doc.Text()), " ")
	}
	out["block_count"] = len(blocks)
	out["text_length"] = len(text)
	out["processing_duration_ms"] = time.Since(start).Milliseconds()
	return text, out, nil
}
