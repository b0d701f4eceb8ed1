package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resume-normalizer/internal/parser"
	"resume-normalizer/internal/processor"
)

// runExtract 提取文档文本，默认做页脚与空行清理
func runExtract(args []string) error {
	fs, cf := newFlagSet("extract")
	input := fs.StringP("file", "f", "", "要提取的文档路径 (pdf/docx/html/txt)")
	raw := fs.Bool("raw", false, "输出未清理的原始文本")
	showMeta := fs.Bool("meta", false, "在 stderr 输出提取元数据")
	save := fs.StringP("output", "o", "", "保存提取内容到文件，默认输出到 stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		return fmt.Errorf("必须提供文档路径 (-f)")
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	registry, err := processor.BuildExtractorRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(*input)
	if err != nil {
		return fmt.Errorf("无法获取文件的绝对路径: %w", err)
	}
	start := time.Now()
	text, meta, err := registry.ExtractFile(ctx, absPath)
	if err != nil {
		return err
	}
	if !*raw {
		text = parser.CleanExtractedText(text)
	}

	if *showMeta {
		meta["elapsed"] = time.Since(start).String()
		b, _ := json.MarshalIndent(meta, "", "  ")
		fmt.Fprintln(os.Stderr, string(b))
	}
	return writeOutput(*save, []byte(text))
}

// writeOutput path 为空时写 stdout
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("保存到文件失败: %w", err)
	}
	fmt.Fprintf(os.Stderr, "已保存到: %s\n", path)
	return nil
}

// readInput path 为空或 "-" 时读 stdin
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return readAllStdin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return data, nil
}
