package parser

import (
	"fmt"
	"strings"

	"resume-normalizer/internal/types"
)

// DefaultRequiredSections 简历必须包含的标准章节
var DefaultRequiredSections = []types.CanonicalSection{
	types.SectionHeader,
	types.SectionSummary,
	types.SectionExperience,
	types.SectionEducation,
}

// MergeRequiredSections 在默认必需章节之后追加额外章节名，忽略未知名称和重复项。
// 返回被忽略的未知名称
func MergeRequiredSections(base []types.CanonicalSection, extra []string) ([]types.CanonicalSection, []string) {
	out := make([]types.CanonicalSection, 0, len(base)+len(extra))
	seen := make(map[types.CanonicalSection]bool)
	for _, c := range base {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	var unknown []string
	for _, name := range extra {
		c, ok := types.ParseCanonicalSection(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, unknown
}

// ValidateRequiredSections 返回缺失的必需章节。没有缺失时返回 nil
func ValidateRequiredSections(sections types.StandardizedSections, required []types.CanonicalSection) []types.CanonicalSection {
	var missing []types.CanonicalSection
	for _, c := range required {
		if !sections.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// MissingSectionsWarning 把缺失章节格式化为一条告警
func MissingSectionsWarning(missing []types.CanonicalSection) string {
	names := make([]string, len(missing))
	for i, c := range missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("Missing critical resume sections: %s", strings.Join(names, ", "))
}

// EmptySectionWarnings 为内容为空白的分段结果生成告警
func EmptySectionWarnings(sections []types.RawSection) []string {
	var warnings []string
	for _, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			warnings = append(warnings, fmt.Sprintf("Missing content in section: %s", s.Name))
		}
	}
	return warnings
}
