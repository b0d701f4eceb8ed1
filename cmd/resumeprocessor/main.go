package main

import (
	"errors"
	"fmt"
	"os"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"extract", "从文档提取并清理文本", runExtract},
	{"segment", "把文本切分为章节，输出 JSON", runSegment},
	{"standardize", "把章节 JSON 映射到标准章节，并覆盖复核日志", runStandardize},
	{"process", "完整处理一份简历，写出标准化结果与复核日志", runProcess},
	{"schema-init", "写出默认的 resume schema", runSchemaInit},
}

func usage() {
	fmt.Fprintf(os.Stderr, "用法: resumeprocessor <command> [flags]\n\n命令:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\n使用 resumeprocessor <command> -h 查看命令参数\n")
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		usage()
		os.Exit(2)
	}
	// .env 缺失不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "警告: 加载 .env 失败: %v\n", err)
	}

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(os.Args[2:]); err != nil {
			if err == pflag.ErrHelp {
				return
			}
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "错误: 未知命令 '%s'\n\n", name)
	usage()
	os.Exit(2)
}

// commonFlags 所有子命令共享的参数
type commonFlags struct {
	configPath string
	logLevel   string
}

func newFlagSet(name string) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cf := &commonFlags{}
	fs.StringVarP(&cf.configPath, "config", "c", "", "配置文件路径")
	fs.StringVar(&cf.logLevel, "log-level", "warn", "日志级别")
	return fs, cf
}

// load 初始化日志并加载配置，日志写到 stderr，stdout 只输出结果
func (cf *commonFlags) load() (*config.Config, error) {
	logger.InitWithWriter(logger.Config{Level: cf.logLevel, Format: "pretty"}, os.Stderr)
	return config.LoadConfig(cf.configPath)
}
