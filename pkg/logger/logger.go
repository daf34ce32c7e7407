package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"tradecap/conf"
)

// zap 封装：控制台 + 滚动文件双输出

var lg *zap.Logger

func init() {
	// 未调用 Setup 前退化为控制台输出，方便单测
	lg, _ = zap.NewDevelopment(zap.AddCallerSkip(1))
}

type Field = zap.Field

// Pair 构造一个结构化字段
func Pair(key string, value any) Field {
	return zap.Any(key, value)
}

func Setup(cfg conf.LogConfig) {
	level := zapcore.InfoLevel
	_ = level.Set(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	if cfg.TimeFormat != "" {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	})

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), writer, level),
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), level))
	}

	lg = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func Debug(msg string, fields ...Field) { lg.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { lg.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { lg.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { lg.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { lg.Fatal(msg, fields...) }

func Sync() { _ = lg.Sync() }
