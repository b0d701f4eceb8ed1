package processor

import (
	"context"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/logger"
	"resume-normalizer/internal/parser"
	"resume-normalizer/pkg/ratelimit"
)

// BuildExtractorRegistry 按配置注册各格式的提取器。
// PDF 引擎由 parser.pdf_engine 决定：eino（默认）、tika 或 ledongthuc
func BuildExtractorRegistry(ctx context.Context, cfg *config.Config) (*parser.ExtractorRegistry, error) {
	reg := parser.NewExtractorRegistry()
	reg.Register(".docx", parser.DocxExtractor{})
	html := parser.NewHTMLExtractor()
	reg.Register(".html", html)
	reg.Register(".htm", html)

	timeout := config.GetDuration(cfg.Parser.ExtractionTimeout, 30*time.Second)

	switch cfg.Parser.PDFEngine {
	case "tika":
		reg.Register(".pdf", buildTikaExtractor(cfg.Tika, timeout))
		logger.Ctx(ctx).Info().Str("server", cfg.Tika.ServerURL).Msg("使用Tika PDF解析器")
	case "ledongthuc":
		reg.Register(".pdf", parser.NewLedongthucPDFExtractor())
		logger.Ctx(ctx).Info().Msg("使用ledongthuc PDF解析器")
	default:
		x, err := parser.NewEinoPDFTextExtractor(ctx,
			parser.WithEinoLogger(logger.StdLogger("eino-pdf")),
			parser.WithEinoTimeout(timeout),
		)
		if err != nil {
			return nil, err
		}
		reg.Register(".pdf", x)
		logger.Ctx(ctx).Info().Msg("使用Eino PDF解析器")
	}
	return reg, nil
}

func buildTikaExtractor(cfg config.TikaConfig, timeout time.Duration) *parser.TikaExtractor {
	var opts []parser.TikaOption
	switch cfg.MetadataMode {
	case "full":
		opts = append(opts, parser.WithFullMetadata(true))
	case "none":
		opts = append(opts, parser.WithMinimalMetadata(false), parser.WithFullMetadata(false))
	default:
		opts = append(opts, parser.WithMinimalMetadata(true))
	}
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	opts = append(opts, parser.WithTimeout(timeout), parser.WithTikaLogger(logger.StdLogger("tika")))
	if cfg.QPM > 0 {
		tb := ratelimit.NewTokenBucket(cfg.QPM, max(1, cfg.QPM/10)).WithRetryPolicy(time.Second, cfg.MaxRetries)
		opts = append(opts, parser.WithRateLimiter(tb))
	}
	return parser.NewTikaExtractor(cfg.ServerURL, opts...)
}
