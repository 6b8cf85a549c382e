// Package logging builds the zap logger shared by every component.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level, encoder and sink.
type Config struct {
	Level string
	Dev   bool
	// Output is "stdout" (default) or "stderr". Development loggers always
	// write to stderr.
	Output string
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a development logger when cfg.Dev is set, otherwise a JSON
// logger with ISO8601 timestamps on cfg.Output.
func New(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	sink := os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		sink = os.Stderr
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(sink), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}

// Notifier is a learnhub.Notifier that writes user-facing messages to a logger.
type Notifier struct {
	logger *zap.Logger
}

// NewNotifier returns a Notifier logging under the "notify" name.
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger.Named("notify")}
}

// Success logs msg at info level.
func (n *Notifier) Success(msg string) { n.logger.Info(msg, zap.String("kind", "success")) }

// Error logs msg at error level.
func (n *Notifier) Error(msg string) { n.logger.Error(msg, zap.String("kind", "error")) }
