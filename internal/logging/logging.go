// Package logging 构建进程级的 zap 日志器
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New APP_ENV 为 development 或为空时返回开发模式日志器，否则返回生产模式JSON日志器
func New(environment string) (*zap.Logger, error) {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "development", "dev", "local":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	default:
		return zap.NewProduction()
	}
}

// Install 构建日志器并设为 zap 全局日志器，同时返回用于 defer 的刷新函数
func Install(environment string) (*zap.Logger, func(), error) {
	logger, err := New(environment)
	if err != nil {
		return nil, nil, err
	}
	restore := zap.ReplaceGlobals(logger)
	return logger, func() {
		_ = logger.Sync()
		restore()
	}, nil
}
