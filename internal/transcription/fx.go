package transcription

import (
	"github.com/smallbiznis/mutrapro/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("transcription",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) Extractor {
			return NewHTTPExtractor(cfg.Transcriber.BaseURL, cfg.Transcriber.Timeout, log)
		},
		func(cfg config.Config, log *zap.Logger, extractor Extractor) *Service {
			return NewService(log, extractor, cfg.UploadsDir, cfg.OutputsDir)
		},
	),
)
