package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"resume-normalizer/internal/parser"
	"resume-normalizer/internal/processor"
	"resume-normalizer/internal/types"
)

// runSegment 文本 -> 有序章节 JSON
func runSegment(args []string) error {
	fs, cf := newFlagSet("segment")
	input := fs.StringP("file", "f", "-", "文本文件路径，- 表示 stdin")
	clean := fs.Bool("clean", true, "分段前清理页脚与空行")
	save := fs.StringP("output", "o", "", "保存 JSON 到文件")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}

	data, err := readInput(*input)
	if err != nil {
		return err
	}
	text := string(data)
	if *clean {
		text = parser.CleanExtractedText(text)
	}

	seg := parser.NewSectionSegmenter(parser.WithMinLineLength(cfg.Normalizer.MinLineLength))
	sections := seg.Segment(text)
	for _, w := range parser.EmptySectionWarnings(sections) {
		fmt.Fprintln(os.Stderr, w)
	}

	out, err := json.MarshalIndent(sections, "", "    ")
	if err != nil {
		return err
	}
	return writeOutput(*save, out)
}

// standardizeOutput standardize 命令的输出
type standardizeOutput struct {
	Standardized types.StandardizedSections `json:"standardized"`
	Unmatched    types.SectionList          `json:"unmatched"`
}

// runStandardize 章节 JSON -> 标准章节，未匹配部分覆盖写入复核日志
func runStandardize(args []string) error {
	fs, cf := newFlagSet("standardize")
	input := fs.StringP("file", "f", "-", "章节 JSON：[{name,content}] 或 {name: content}")
	save := fs.StringP("output", "o", "", "保存 JSON 到文件")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}

	data, err := readInput(*input)
	if err != nil {
		return err
	}
	sections, err := decodeSections(data)
	if err != nil {
		return err
	}

	ctx, cancel := cmdContext()
	defer cancel()
	proc, err := processor.NewFromConfig(ctx, cfg, nil)
	if err != nil {
		return err
	}
	result, err := proc.StandardizeSections(sections)
	if err != nil {
		return err
	}
	if len(result.Unmatched) > 0 {
		fmt.Fprintf(os.Stderr, "%d 个章节未匹配，已写入 %s\n", len(result.Unmatched), cfg.Normalizer.ReviewLogPath)
	}

	out, err := json.MarshalIndent(standardizeOutput{
		Standardized: result.Sections,
		Unmatched:    result.UnmatchedLog(),
	}, "", "    ")
	if err != nil {
		return err
	}
	return writeOutput(*save, out)
}

// decodeSections 接受 [{name,content}] 数组或对象；对象按键在文档中的顺序展开
func decodeSections(data []byte) ([]types.RawSection, error) {
	sections, err := types.ParseSections(data)
	if err != nil {
		return nil, err
	}
	return sections, nil
}

func readAllStdin() ([]byte, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("读取 stdin 失败: %w", err)
	}
	return data, nil
}
