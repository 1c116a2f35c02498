package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// global helpers -> Logger method -> log
const callerSkip = 2

// Logger is the context-aware logger handed to components and client factories.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
}

// NewZapLogger adapts an existing zap logger, e.g. zaptest.NewLogger in tests.
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		return &noopLogger{}
	}
	return &zapLogger{z: z}
}

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

// Fatal logs and exits the process through zap.
func (l *zapLogger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.FatalLevel, msg, fields)
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

func (l *zapLogger) log(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.z.Check(level, msg); ce != nil {
		if id := traceID(ctx); id != "" && !hasTraceField(fields) {
			fields = append([]zap.Field{zap.String(consts.KEY_TraceID, id)}, fields...)
		}
		ce.Write(fields...)
	}
}

func hasTraceField(fields []zap.Field) bool {
	for _, f := range fields {
		if f.Key == consts.KEY_TraceID {
			return true
		}
	}
	return false
}

// traceID only reports an existing OTel trace id; none is synthesized.
func traceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// LoggerComponent owns the process logger. Starting it replaces both the
// package global and zap's global logger.
type LoggerComponent struct {
	*core.BaseComponent
	*zapLogger
	config *LoggingConfig
	closer func() error
}

func NewLoggerComponent(cfg *LoggingConfig) *LoggerComponent {
	return &LoggerComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_LOGGING),
		config:        cfg,
	}
}

func (lc *LoggerComponent) Start(ctx context.Context) error {
	if err := lc.BaseComponent.Start(ctx); err != nil {
		return err
	}

	level, err := parseLevel(lc.config.Level)
	if err != nil {
		return err
	}
	ws, err := lc.buildWriteSyncer()
	if err != nil {
		return fmt.Errorf("failed to create write syncer: %w", err)
	}

	z := zap.New(
		zapcore.NewCore(lc.buildEncoder(), ws, level),
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	lc.zapLogger = &zapLogger{z: z}

	SetGlobalLogger(lc)
	// lifecycle and hooks log through zap.L()
	zap.ReplaceGlobals(z.WithOptions(zap.AddCallerSkip(-callerSkip)))

	lc.Info(ctx, "logger component started",
		zap.String("level", lc.config.Level),
		zap.String("format", lc.config.Format),
		zap.String("output", lc.config.Output),
	)
	return nil
}

func (lc *LoggerComponent) Stop(ctx context.Context) error {
	if lc.zapLogger != nil {
		lc.Info(ctx, "logger component stopping")
		_ = lc.zapLogger.Sync()
	}
	if lc.closer != nil {
		_ = lc.closer()
	}
	return lc.BaseComponent.Stop(ctx)
}

func (lc *LoggerComponent) HealthCheck() error {
	if err := lc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if lc.zapLogger == nil {
		return fmt.Errorf("zap logger is not initialized")
	}
	return nil
}

// Zap exposes the underlying logger.
func (lc *LoggerComponent) Zap() *zap.Logger {
	if lc.zapLogger == nil {
		return zap.NewNop()
	}
	return lc.z
}

func (lc *LoggerComponent) buildEncoder() zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.EqualFold(lc.config.Format, "console") {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func (lc *LoggerComponent) buildWriteSyncer() (zapcore.WriteSyncer, error) {
	switch strings.ToLower(lc.config.Output) {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "file":
		f := lc.config.File
		if err := os.MkdirAll(f.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lumber := &lumberjack.Logger{
			Filename:   filepath.Join(f.Dir, f.Filename+".log"),
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
			LocalTime:  true,
		}
		lc.closer = lumber.Close
		return zapcore.AddSync(lumber), nil
	default:
		// anything else is a plain file path
		file, err := os.OpenFile(lc.config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		lc.closer = file.Close
		return zapcore.AddSync(file), nil
	}
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown level %q", level)
}
