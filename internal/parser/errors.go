package parser

import "errors"

var (
	// ErrInvalidSectionRules 章节规则配置不合法
	ErrInvalidSectionRules = errors.New("invalid section rules")
	// ErrUnsupportedFormat 没有可处理该文件类型的提取器
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument 文档为空或没有可提取的文本
	ErrEmptyDocument = errors.New("empty document")
)
