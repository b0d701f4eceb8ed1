package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-normalizer/internal/processor"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/types"
)

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}

// runProcess 处理一份简历文档，写出标准化结果、复核日志，并在 stderr 打印告警
func runProcess(args []string) error {
	fs, cf := newFlagSet("process")
	input := fs.StringP("file", "f", "", "简历文档路径；PDF 不存在时尝试同名 .docx")
	withStorage := fs.Bool("with-storage", false, "同时写入配置中启用的 Redis/MinIO/MySQL")
	save := fs.StringP("output", "o", "", "额外保存记录 JSON 到文件")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		return fmt.Errorf("必须提供简历文档路径 (-f)")
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}

	path, err := resolveResumePath(*input)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}

	ctx, cancel := cmdContext()
	defer cancel()
	var store *storage.Storage
	if *withStorage {
		if store, err = storage.NewStorage(ctx, cfg); err != nil {
			return err
		}
		defer store.Close()
	}

	proc, err := processor.NewFromConfig(ctx, cfg, store)
	if err != nil {
		return err
	}
	rec, err := proc.ProcessDocument(ctx, data, filepath.Base(path), "")
	if err != nil {
		return err
	}

	printSummary(rec, cfg.Normalizer.OutputDir, cfg.Normalizer.ReviewLogPath)
	if *save == "" {
		return nil
	}
	out, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return err
	}
	return writeOutput(*save, out)
}

// resolveResumePath PDF 缺失时回退到同目录下同名的 .docx
func resolveResumePath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		docx := strings.TrimSuffix(path, filepath.Ext(path)) + ".docx"
		if _, err := os.Stat(docx); err == nil {
			fmt.Fprintf(os.Stderr, "%s 不存在，使用 %s\n", path, docx)
			return docx, nil
		}
	}
	return "", fmt.Errorf("简历文件不存在: %s", path)
}

func printSummary(rec *types.ResumeRecord, outputDir, reviewLogPath string) {
	fmt.Printf("submission_uuid: %s\n", rec.SubmissionUUID)
	fmt.Printf("contact: email=%s phone=%s linkedin=%s\n",
		orNone(rec.ContactInfo.Email), orNone(rec.ContactInfo.Phone), orNone(rec.ContactInfo.LinkedIn))
	for _, c := range rec.Standardized.Present() {
		fmt.Printf("  %-16s %d 段\n", c, len(rec.Standardized.Get(c)))
	}
	if len(rec.Unmatched) > 0 {
		fmt.Printf("unmatched: %d 个章节，见 %s\n", len(rec.Unmatched), reviewLogPath)
	}
	if outputDir != "" {
		fmt.Printf("record: %s\n", filepath.Join(outputDir, rec.SubmissionUUID+".json"))
	}
	for _, w := range rec.Warnings {
		fmt.Fprintln(os.Stderr, "WARNING:", w)
	}
}

func orNone(f types.ContactField) string {
	if !f.Found {
		return "-"
	}
	return f.Value
}

// runSchemaInit 写出每个标准章节为字符串数组的 schema
func runSchemaInit(args []string) error {
	fs, cf := newFlagSet("schema-init")
	path := fs.StringP("output", "o", "", "schema 文件路径，默认使用配置中的 schema_path")
	required := fs.StringSlice("required", nil, "写入 schema 的 required 章节")
	force := fs.Bool("force", false, "覆盖已有文件")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if *path != "" {
		cfg.Normalizer.SchemaPath = *path
	}
	if _, err := os.Stat(cfg.Normalizer.SchemaPath); err == nil && !*force {
		return fmt.Errorf("%s 已存在，使用 --force 覆盖", cfg.Normalizer.SchemaPath)
	}

	for _, name := range *required {
		if _, ok := types.ParseCanonicalSection(name); !ok {
			return fmt.Errorf("未知的标准章节: %s", name)
		}
	}
	raw, err := storage.BuildSchema(types.AllCanonicalSections, *required)
	if err != nil {
		return err
	}
	if err := storage.NewFileStore(cfg.Normalizer).SaveSchema(raw); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "schema 已写入: %s\n", cfg.Normalizer.SchemaPath)
	return nil
}
