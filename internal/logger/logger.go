package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the process-wide logger. It discards everything until Init is called.
var L = zap.NewNop()

// Init replaces L with a JSON logger at the given level.
// Unknown levels fall back to info.
func Init(level string) error {
	lvl, ok := parseLevel(level)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	L = l
	if !ok {
		L.Warn("invalid LOG_LEVEL, defaulting to info", zap.String("configured", level))
	}
	return nil
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	_ = L.Sync()
}

func parseLevel(level string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "", "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}
