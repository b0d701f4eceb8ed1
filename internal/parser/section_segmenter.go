package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"resume-normalizer/internal/types"
)

// DefaultMinLineLength 去掉首尾空白后长度不超过该值的行视为噪声丢弃
const DefaultMinLineLength = 3

// SectionTrigger 行内包含 Keyword（大小写不敏感）时，把当前章节切换为 Section
type SectionTrigger struct {
	Keyword string
	Section string
}

// DefaultSectionTriggers 按顺序检查，第一个命中的生效
var DefaultSectionTriggers = []SectionTrigger{
	{Keyword: "experience", Section: "Experience"},
	{Keyword: "education", Section: "Education"},
	{Keyword: "skills", Section: "Skills"},
}

// SectionSegmenter 基于触发词把简历文本切分为章节。
// 实例本身不保存任何解析状态，可以被多个 goroutine 共享
type SectionSegmenter struct {
	triggers      []SectionTrigger
	minLineLength int
}

// SegmenterOption 分段器配置选项
type SegmenterOption func(*SectionSegmenter)

// WithSectionTriggers 替换触发词列表
func WithSectionTriggers(triggers []SectionTrigger) SegmenterOption {
	return func(s *SectionSegmenter) {
		if len(triggers) > 0 {
			s.triggers = triggers
		}
	}
}

// WithMinLineLength 设置噪声行长度阈值
func WithMinLineLength(n int) SegmenterOption {
	return func(s *SectionSegmenter) {
		if n >= 0 {
			s.minLineLength = n
		}
	}
}

// NewSectionSegmenter 创建分段器
func NewSectionSegmenter(opts ...SegmenterOption) *SectionSegmenter {
	s := &SectionSegmenter{
		triggers:      DefaultSectionTriggers,
		minLineLength: DefaultMinLineLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	lowered := make([]SectionTrigger, len(s.triggers))
	for i, t := range s.triggers {
		lowered[i] = SectionTrigger{Keyword: strings.ToLower(t.Keyword), Section: t.Section}
	}
	s.triggers = lowered
	return s
}

// sectionAccumulator 单次分段调用的工作状态
type sectionAccumulator struct {
	current string
	order   []string
	lines   map[string][]string
}

func newSectionAccumulator() *sectionAccumulator {
	return &sectionAccumulator{
		current: types.DefaultSectionName,
		lines:   make(map[string][]string),
	}
}

func (a *sectionAccumulator) add(line string) {
	if _, ok := a.lines[a.current]; !ok {
		a.order = append(a.order, a.current)
	}
	a.lines[a.current] = append(a.lines[a.current], line)
}

func (a *sectionAccumulator) result() []types.RawSection {
	out := make([]types.RawSection, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, types.RawSection{Name: name, Content: strings.Join(a.lines[name], "\n")})
	}
	return out
}

// Segment 把文本切分为有序章节列表。
// 触发行本身归入新章节；空输入返回空列表
func (s *SectionSegmenter) Segment(text string) []types.RawSection {
	acc := newSectionAccumulator()
	if text == "" {
		return acc.result()
	}

	for _, line := range strings.Split(NormalizeLineEndings(text), "\n") {
		trimmed := strings.TrimSpace(line)
		if utf8.RuneCountInString(trimmed) <= s.minLineLength {
			continue
		}
		if next, ok := s.match(trimmed); ok {
			acc.current = next
		}
		acc.add(line)
	}
	return acc.result()
}

// SegmentToMap 返回 name -> content 视图
func (s *SectionSegmenter) SegmentToMap(text string) map[string]string {
	return types.SectionsToMap(s.Segment(text))
}

func (s *SectionSegmenter) match(line string) (string, bool) {
	lower := strings.ToLower(line)
	for _, t := range s.triggers {
		if strings.Contains(lower, t.Keyword) {
			return t.Section, true
		}
	}
	return "", false
}

// Fingerprint 分段规则的稳定描述，阈值或触发词变化时随之变化
func (s *SectionSegmenter) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "min=%d", s.minLineLength)
	for _, t := range s.triggers {
		fmt.Fprintf(&b, ";%s=%s", t.Keyword, t.Section)
	}
	return b.String()
}
