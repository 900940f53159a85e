package cmdutil

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log formats accepted by NewLogger.
const (
	LogJSON    = "json"
	LogConsole = "console"
)

// NewLogger builds a logger writing to dst: the production JSON encoder or
// the development console encoder, at debug level when verbose and info
// otherwise.
func NewLogger(dst io.Writer, format string, verbose bool) (*zap.Logger, error) {
	var enc zapcore.Encoder
	switch format {
	case "", LogJSON:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	case LogConsole:
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", format, LogJSON, LogConsole)
	}
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(dst)), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(dst)))), nil
}
