package tracing

import (
	"strings"

	"resume-normalizer/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200
	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100
)

// 属性名包含这些关键字时，值需要掩码
var piiKeywords = []string{
	"email", "phone", "linkedin", "password", "address", "地址",
	"name", "姓名", "secret", "token", "api_key",
}

// SafeAttributeValue 敏感字段返回掩码值，其余按 maxLength 截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理。
// "张三" -> "张*"，"王小明" -> "王*明"，更长的值保留首尾各两个字符
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	}
	return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
}

// ContactAttributes 联系方式的 span 属性，只暴露是否找到与掩码值
func ContactAttributes(info types.ContactInfo) []attribute.KeyValue {
	fields := []struct {
		key   string
		field types.ContactField
	}{
		{"email", info.Email},
		{"phone", info.Phone},
		{"linkedin", info.LinkedIn},
	}
	attrs := make([]attribute.KeyValue, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, attribute.Bool("resume.contact."+f.key+".found", f.field.Found))
		if f.field.Found {
			attrs = append(attrs, attribute.String("resume.contact."+f.key, MaskPII(f.field.Value)))
		}
	}
	return attrs
}

// TruncateString 截断字符串，保留前后部分并用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := (maxLength - 3) / 2
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeRedisKey 安全处理Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

