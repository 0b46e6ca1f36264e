package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger scoped to a host component or plugin package
type Logger struct {
	*zap.Logger
}

// Config selects the level, the encoding and the sink
type Config struct {
	Level       string // debug, info, warn or error; empty means info
	Development bool
	Output      io.Writer // defaults to stderr
}

// New builds a logger writing to cfg.Output
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(os.Stderr)))}
	if cfg.Development {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeDuration = zapcore.StringDurationEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		encoder = zapcore.NewJSONEncoder(enc)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	return &Logger{Logger: zap.New(core, opts...)}, nil
}

// NewDefault returns an info-level JSON logger on stderr
func NewDefault() *Logger {
	logger, _ := New(Config{})
	return logger
}

// NewNop discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger for a host component
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.Named(component)}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// ForPackage tags every line with the plugin package it came from
func (l *Logger) ForPackage(id, name string) *Logger {
	return l.With(zap.String("package", id), zap.String("package_name", name))
}
