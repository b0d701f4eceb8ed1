package parser

import (
	"regexp"
	"strings"

	"resume-normalizer/internal/types"
)

// StandardizeResult 标准化结果。Unmatched 保持输入顺序，需要人工复核
type StandardizeResult struct {
	Sections  types.StandardizedSections
	Unmatched []types.RawSection
}

// UnmatchedLog 复核日志视图：保持输入顺序，同名章节合并而不是覆盖
func (r StandardizeResult) UnmatchedLog() types.SectionList {
	return types.SectionList(r.Unmatched).Merged()
}

// SectionStandardizer 把任意章节名映射到标准章节。
// 先查同义词表（大小写不敏感精确匹配），再按规则顺序做整词回退匹配
type SectionStandardizer struct {
	rules  []SectionRule
	direct map[string]types.CanonicalSection
	corpus []string
}

// NewSectionStandardizer 校验规则并预先构建查找表。rules 为空时使用默认规则
func NewSectionStandardizer(rules []SectionRule) (*SectionStandardizer, error) {
	if len(rules) == 0 {
		rules = DefaultSectionRules()
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	s := &SectionStandardizer{
		rules:  rules,
		direct: make(map[string]types.CanonicalSection),
		corpus: make([]string, len(rules)),
	}
	for i, r := range rules {
		// 标准章节名本身也作为同义词，保证已标准化的输入原样通过
		names := append([]string{string(r.Canonical)}, r.Aliases...)
		for _, a := range names {
			key := strings.ToLower(strings.TrimSpace(a))
			if _, exists := s.direct[key]; !exists {
				s.direct[key] = r.Canonical
			}
		}
		s.corpus[i] = strings.Join(names, " ")
	}
	return s, nil
}

// Classify 返回章节名对应的标准章节；空白名称和无法识别的名称返回 false
func (s *SectionStandardizer) Classify(name string) (types.CanonicalSection, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", false
	}
	if c, ok := s.direct[strings.ToLower(trimmed)]; ok {
		return c, true
	}

	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(trimmed) + `\b`)
	for i, r := range s.rules {
		if re.MatchString(s.corpus[i]) {
			return r.Canonical, true
		}
	}
	return "", false
}

// Standardize 按输入顺序把内容追加到对应标准章节，无法识别的进入 Unmatched
func (s *SectionStandardizer) Standardize(sections []types.RawSection) StandardizeResult {
	var res StandardizeResult
	for _, sec := range sections {
		if c, ok := s.Classify(sec.Name); ok {
			res.Sections.Append(c, sec.Content)
			continue
		}
		res.Unmatched = append(res.Unmatched, sec)
	}
	return res
}

// Fingerprint 同义词表的稳定描述，规则顺序也计入
func (s *SectionStandardizer) Fingerprint() string {
	var b strings.Builder
	for _, r := range s.rules {
		b.WriteString(string(r.Canonical))
		b.WriteByte('=')
		b.WriteString(strings.Join(r.Aliases, "|"))
		b.WriteByte(';')
	}
	return b.String()
}
