package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GO_ENV=productionならJSON、それ以外は人が読みやすいコンソール出力
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}
