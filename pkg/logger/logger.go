package logger

import (
	"go.uber.org/zap"
)

// Log 全局日志实例，未初始化前为空实现
var Log = zap.NewNop()

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Duration = zap.Duration
	Any      = zap.Any
	Error    = zap.Error
)

// Initialize 按级别初始化 JSON 日志
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = l
	return nil
}

// Sync 刷新缓冲区
func Sync() {
	_ = Log.Sync()
}
