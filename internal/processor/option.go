package processor

import (
	"time"

	"resume-normalizer/internal/parser"
	"resume-normalizer/internal/storage"
)

// ComponentOpt 只修改 Components
type ComponentOpt func(*Components)

// SettingOpt 只修改 Settings
type SettingOpt func(*Settings)

// WithExtractor 设置文档提取器
func WithExtractor(x DocumentExtractor) ComponentOpt {
	return func(c *Components) { c.Extractor = x }
}

// WithSegmenter 设置分段器
func WithSegmenter(s *parser.SectionSegmenter) ComponentOpt {
	return func(c *Components) { c.Segmenter = s }
}

// WithStandardizer 设置标准化器
func WithStandardizer(s *parser.SectionStandardizer) ComponentOpt {
	return func(c *Components) { c.Standardizer = s }
}

// WithLocalStore 设置本地文件存储
func WithLocalStore(s LocalStore) ComponentOpt {
	return func(c *Components) { c.Files = s }
}

// WithCache 设置结果缓存
func WithCache(cache RecordCache) ComponentOpt {
	return func(c *Components) { c.Cache = cache }
}

// WithArchive 设置对象存储归档
func WithArchive(a RecordArchive) ComponentOpt {
	return func(c *Components) { c.Archive = a }
}

// WithRepository 设置关系库
func WithRepository(r RecordRepository) ComponentOpt {
	return func(c *Components) { c.Repository = r }
}

// WithStorage 从存储聚合中挑出已启用的组件
func WithStorage(s *storage.Storage) ComponentOpt {
	return func(c *Components) {
		if s == nil {
			return
		}
		if s.Files != nil {
			c.Files = s.Files
		}
		// 未启用的组件保持 nil 接口
		if s.Redis != nil {
			WithCache(s.Redis)(c)
		}
		if s.MinIO != nil {
			WithArchive(s.MinIO)(c)
		}
		if s.MySQL != nil {
			WithRepository(s.MySQL)(c)
		}
	}
}

// WithRequiredSections 追加必需章节
func WithRequiredSections(names ...string) SettingOpt {
	return func(s *Settings) { s.RequiredSections = append(s.RequiredSections, names...) }
}

// WithCleanText 分段前是否清理文本
func WithCleanText(clean bool) SettingOpt {
	return func(s *Settings) { s.CleanText = clean }
}

// WithEventRoute 设置标准化事件的交换机与路由键
func WithEventRoute(exchange, routingKey string) SettingOpt {
	return func(s *Settings) {
		s.EventExchange = exchange
		s.EventRoutingKey = routingKey
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) SettingOpt {
	return func(s *Settings) { s.Now = now }
}

// WithIDGenerator 替换提交ID生成器
func WithIDGenerator(gen func() (string, error)) SettingOpt {
	return func(s *Settings) { s.NewID = gen }
}
