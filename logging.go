package gastronomy

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger: a colored console logger outside
// production, JSON in production.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Log.Level != "" {
		if err := level.Set(cfg.Log.Level); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
		}
	}

	if cfg.IsProduction() {
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(level)
		return zapConfig.Build()
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
