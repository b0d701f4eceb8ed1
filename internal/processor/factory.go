package processor

import (
	"context"
	"fmt"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/parser"
	"resume-normalizer/internal/storage"
)

// NewFromConfig 按配置组装处理器：提取器注册表、分段器、默认规则的标准化器，
// 以及 store 中已启用的存储组件。store 为 nil 时只使用本地文件
func NewFromConfig(ctx context.Context, cfg *config.Config, store *storage.Storage) (*ResumeProcessor, error) {
	registry, err := BuildExtractorRegistry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化文档提取器失败: %w", err)
	}

	standardizer, err := parser.NewSectionStandardizer(parser.DefaultSectionRules())
	if err != nil {
		return nil, err
	}

	compOpts := []ComponentOpt{
		WithExtractor(registry),
		WithSegmenter(parser.NewSectionSegmenter(parser.WithMinLineLength(cfg.Normalizer.MinLineLength))),
		WithStandardizer(standardizer),
		WithLocalStore(storage.NewFileStore(cfg.Normalizer)),
	}
	if store != nil {
		compOpts = append(compOpts, WithStorage(store))
	}

	setOpts := []SettingOpt{
		WithRequiredSections(cfg.Normalizer.RequiredSections...),
		WithCleanText(cfg.Normalizer.CleanText),
	}
	if store != nil && store.MySQL != nil && store.RabbitMQ != nil {
		setOpts = append(setOpts, WithEventRoute(cfg.RabbitMQ.ResumeEventsExchange, cfg.RabbitMQ.StandardizedRoutingKey))
	}

	return NewResumeProcessor(NewComponents(compOpts...), Settings{}, setOpts...)
}
