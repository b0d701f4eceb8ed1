package parser

import (
	"regexp"
	"strings"

	"resume-normalizer/internal/types"
)

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9+_.-]+@[a-zA-Z0-9.-]+`)
	phonePattern    = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	linkedInPattern = regexp.MustCompile(`(https?://)?([\w]+\.)?(?i:linkedin\.com)/in/[\w-]+`)
)

// ExtractContactInfo 在全文中分别查找第一个邮箱、北美格式电话和 LinkedIn 个人主页。
// 各字段独立匹配，缺失时 Found 为 false
func ExtractContactInfo(text string) types.ContactInfo {
	return types.ContactInfo{
		Email:    firstMatch(emailPattern, text),
		Phone:    firstMatch(phonePattern, text),
		LinkedIn: firstMatch(linkedInPattern, text),
	}
}

func firstMatch(re *regexp.Regexp, text string) types.ContactField {
	m := re.FindString(text)
	if m == "" {
		return types.ContactField{}
	}
	return types.FoundField(strings.TrimSpace(m))
}
