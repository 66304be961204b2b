package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// setupLogging routes the stdlib logger used across packages into a
// zap core backed by a rotating file. With no file configured the
// stdlib logger keeps writing to stderr. The returned function
// restores the logger and flushes the core.
func setupLogging(cfg LogConfig) func() {
	if cfg.File == "" {
		return func() {}
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, zap.InfoLevel)

	logger := zap.New(core)
	restore := zap.RedirectStdLog(logger)

	return func() {
		restore()
		_ = logger.Sync()
	}
}
