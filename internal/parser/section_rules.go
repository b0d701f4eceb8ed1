package parser

import (
	"fmt"
	"strings"

	"resume-normalizer/internal/types"
)

// SectionRule 一个标准章节及其同义词
type SectionRule struct {
	Canonical types.CanonicalSection `json:"canonical" yaml:"canonical"`
	Aliases   []string               `json:"aliases" yaml:"aliases"`
}

// DefaultSectionRules 默认同义词表，顺序即回退匹配时的优先级
func DefaultSectionRules() []SectionRule {
	return []SectionRule{
		{Canonical: types.SectionHeader, Aliases: []string{"Contact Information", "Name", "Phone", "Email", "LinkedIn"}},
		{Canonical: types.SectionSummary, Aliases: []string{"Professional Summary", "Career Summary", "Profile"}},
		{Canonical: types.SectionExperience, Aliases: []string{"Work Experience", "Employment", "Work History", "Job"}},
		{Canonical: types.SectionEducation, Aliases: []string{"Degrees", "Certifications", "Academic Background"}},
		{Canonical: types.SectionSkills, Aliases: []string{"Technical Skills", "Soft Skills", "Expertise"}},
		{Canonical: types.SectionProjects, Aliases: []string{"Selected Projects", "Key Projects"}},
		{Canonical: types.SectionKeyAchievements, Aliases: []string{"Accomplishments", "Awards", "Recognition"}},
		{Canonical: types.SectionStrengths, Aliases: []string{"Strengths", "Competencies"}},
	}
}

// ValidateRules 检查规则列表：标准章节必须合法且不重复，同义词不能为空白
func ValidateRules(rules []SectionRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: 规则列表为空", ErrInvalidSectionRules)
	}
	seen := make(map[types.CanonicalSection]bool, len(rules))
	for i, r := range rules {
		if _, ok := types.ParseCanonicalSection(string(r.Canonical)); !ok {
			return fmt.Errorf("%w: 第 %d 条规则的标准章节 %q 未知", ErrInvalidSectionRules, i, r.Canonical)
		}
		if seen[r.Canonical] {
			return fmt.Errorf("%w: 标准章节 %q 重复定义", ErrInvalidSectionRules, r.Canonical)
		}
		seen[r.Canonical] = true
		for _, a := range r.Aliases {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("%w: 标准章节 %q 含空白同义词", ErrInvalidSectionRules, r.Canonical)
			}
		}
	}
	return nil
}
