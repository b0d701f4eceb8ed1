package parser

import (
	"regexp"
	"strings"
)

var (
	pageFooterPattern = regexp.MustCompile(`Page \d+ of \d+`)
	blankRunPattern   = regexp.MustCompile(`\n\s*\n`)
)

// NormalizeLineEndings 把 \r\n 统一为 \n，单独的 \r 不视为换行
func NormalizeLineEndings(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// CleanExtractedText 清理提取出的原始文本：
// 去掉 "Page X of Y" 页脚，把连续空行压缩为一个换行，去掉首尾空白
func CleanExtractedText(text string) string {
	text = NormalizeLineEndings(text)
	text = pageFooterPattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
