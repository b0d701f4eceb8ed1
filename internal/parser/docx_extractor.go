package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/nguyenthenguyen/docx"
)

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br[^>]*/>|<w:cr[^>]*/>`)
	docxTab          = regexp.MustCompile(`<w:tab[^>]*/>`)
	docxTag          = regexp.MustCompile(`<[^>]+>`)
)

// DocxExtractor 从 .docx 的 document.xml 中提取段落文本
type DocxExtractor struct{}

var _ TextExtractor = DocxExtractor{}

// ExtractTextFromBytes 实现 TextExtractor
func (DocxExtractor) ExtractTextFromBytes(_ context.Context, data []byte, uri string, meta map[string]interface{}) (string, map[string]interface{}, error) {
	start := time.Now()
	out := mergeMeta(meta)
	out["extractor"] = "docx"

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", out, fmt.Errorf("解析DOCX %s 失败: %w", uri, err)
	}
	defer doc.Close()

	text := docxXMLToText(doc.Editable().GetContent())
	out["text_length"] = len(text)
	out["processing_duration_ms"] = time.Since(start).Milliseconds()
	return text, out, nil
}

// docxXMLToText 段落与换行转为 \n，制表符转为 \t，其余标签去掉
func docxXMLToText(xml string) string {
	s := docxParagraphEnd.ReplaceAllString(xml, "\n")
	s = docxTab.ReplaceAllString(s, "\t")
	s = docxTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
