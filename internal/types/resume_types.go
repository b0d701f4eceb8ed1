package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CanonicalSection 标准化后的简历章节名
type CanonicalSection string

const (
	// SectionHeader 联系方式/抬头
	SectionHeader CanonicalSection = "Header"
	// SectionSummary 个人简介
	SectionSummary CanonicalSection = "Summary"
	// SectionExperience 工作经历
	SectionExperience CanonicalSection = "Experience"
	// SectionEducation 教育经历
	SectionEducation CanonicalSection = "Education"
	// SectionSkills 技能
	SectionSkills CanonicalSection = "Skills"
	// SectionProjects 项目经历
	SectionProjects CanonicalSection = "Projects"
	// SectionKeyAchievements 主要成就
	SectionKeyAchievements CanonicalSection = "Key Achievements"
	// SectionStrengths 个人优势
	SectionStrengths CanonicalSection = "Strengths"
)

// AllCanonicalSections 按枚举顺序排列，标准化的回退匹配依赖这个顺序
var AllCanonicalSections = []CanonicalSection{
	SectionHeader,
	SectionSummary,
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionProjects,
	SectionKeyAchievements,
	SectionStrengths,
}

// DefaultSectionName 分段器在遇到任何触发词之前使用的章节名
const DefaultSectionName = "General"

// ParseCanonicalSection 大小写不敏感地解析标准章节名
func ParseCanonicalSection(name string) (CanonicalSection, bool) {
	trimmed := strings.TrimSpace(name)
	for _, s := range AllCanonicalSections {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return "", false
}

// ContactField 单个联系方式字段。Found=false 表示未找到，与空字符串区分
type ContactField struct {
	Value string
	Found bool
}

// FoundField 构造一个已找到的字段
func FoundField(v string) ContactField {
	return ContactField{Value: v, Found: true}
}

// MarshalJSON 未找到时输出 null
func (f ContactField) MarshalJSON() ([]byte, error) {
	if !f.Found {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON null 还原为未找到
func (f *ContactField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ContactField{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FoundField(s)
	return nil
}

// ContactInfo 从简历全文中提取的联系方式
type ContactInfo struct {
	Email    ContactField `json:"email"`
	Phone    ContactField `json:"phone"`
	LinkedIn ContactField `json:"linkedin"`
}

// RawSection 分段器输出的一个章节，名称未标准化
type RawSection struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SectionList 有序章节列表。JSON 形式为按出现顺序排列键的对象，
// 同名章节的内容按出现顺序用换行合并，不会丢失
type SectionList []RawSection

// Merged 合并同名章节，保持首次出现的位置
func (l SectionList) Merged() SectionList {
	out := make(SectionList, 0, len(l))
	index := make(map[string]int, len(l))
	for _, sec := range l {
		if i, ok := index[sec.Name]; ok {
			out[i].Content += "\n" + sec.Content
			continue
		}
		index[sec.Name] = len(out)
		out = append(out, sec)
	}
	return out
}

// MarshalJSON 输出保持顺序的 JSON 对象，空列表为 {}
func (l SectionList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sec := range l.Merged() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(sec.Name)
		if err != nil {
			return nil, err
		}
		content, err := json.Marshal(sec.Content)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(content)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 按文档顺序读取对象或 [{name,content}] 数组
func (l *SectionList) UnmarshalJSON(data []byte) error {
	sections, err := ParseSections(data)
	if err != nil {
		return err
	}
	*l = sections
	return nil
}

// ParseSections 解析章节 JSON：对象按键在文档中的顺序展开（重复键全部保留），
// 数组元素为 {name, content}
func ParseSections(data []byte) (SectionList, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("章节 JSON 格式错误")
	}
	root := gjson.ParseBytes(data)
	out := SectionList{}
	switch {
	case root.IsObject():
		root.ForEach(func(key, value gjson.Result) bool {
			out = append(out, RawSection{Name: key.String(), Content: value.String()})
			return true
		})
	case root.IsArray():
		for _, item := range root.Array() {
			if !item.IsObject() {
				return nil, fmt.Errorf("章节数组元素必须是 {name, content} 对象")
			}
			out = append(out, RawSection{Name: item.Get("name").String(), Content: item.Get("content").String()})
		}
	default:
		return nil, fmt.Errorf("章节 JSON 必须是对象或数组")
	}
	return out, nil
}

// SectionsToMap 把章节名唯一的有序列表转换为 name -> content 视图（如分段器输出）
func SectionsToMap(sections []RawSection) map[string]string {
	m := make(map[string]string, len(sections))
	for _, s := range sections {
		m[s.Name] = s.Content
	}
	return m
}

// StandardizedSections 每个标准章节一个字段，值为按出现顺序保存的内容块
type StandardizedSections struct {
	Header          []string `json:"Header,omitempty"`
	Summary         []string `json:"Summary,omitempty"`
	Experience      []string `json:"Experience,omitempty"`
	Education       []string `json:"Education,omitempty"`
	Skills          []string `json:"Skills,omitempty"`
	Projects        []string `json:"Projects,omitempty"`
	KeyAchievements []string `json:"Key Achievements,omitempty"`
	Strengths       []string `json:"Strengths,omitempty"`
}

func (s *StandardizedSections) slot(c CanonicalSection) *[]string {
	switch c {
	case SectionHeader:
		return &s.Header
	case SectionSummary:
		return &s.Summary
	case SectionExperience:
		return &s.Experience
	case SectionEducation:
		return &s.Education
	case SectionSkills:
		return &s.Skills
	case SectionProjects:
		return &s.Projects
	case SectionKeyAchievements:
		return &s.KeyAchievements
	case SectionStrengths:
		return &s.Strengths
	}
	return nil
}

// Append 向标准章节追加一个内容块，未知章节忽略
func (s *StandardizedSections) Append(c CanonicalSection, content string) {
	if p := s.slot(c); p != nil {
		*p = append(*p, content)
	}
}

// Get 返回标准章节的内容块
func (s *StandardizedSections) Get(c CanonicalSection) []string {
	if p := s.slot(c); p != nil {
		return *p
	}
	return nil
}

// Has 章节至少有一个内容块
func (s *StandardizedSections) Has(c CanonicalSection) bool {
	return len(s.Get(c)) > 0
}

// Present 按枚举顺序返回已出现的章节
func (s *StandardizedSections) Present() []CanonicalSection {
	var out []CanonicalSection
	for _, c := range AllCanonicalSections {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// ResumeRecord 一次标准化运行的完整输出
type ResumeRecord struct {
	SubmissionUUID string               `json:"submission_uuid"`
	Source         string               `json:"source,omitempty"`
	TextMD5        string               `json:"text_md5"`
	ContactInfo    ContactInfo          `json:"contact_info"`
	Sections       []RawSection         `json:"sections"`
	Standardized   StandardizedSections `json:"standardized"`
	Unmatched      []RawSection         `json:"unmatched,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
	ProcessedAt    time.Time            `json:"processed_at"`
}
