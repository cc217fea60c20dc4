// Package obslog provides ENTROPY's structured logging and tracing,
// adapted from the teacher's internal/logger + internal/trace: slog for
// structured output, OpenTelemetry for spans, plus the two
// well-known diagnostic marker prefixes spec.md §6 requires
// ([BOUNDARY: Src→Dst] and [DIAGNOSTIC]).
package obslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	globalLogger    *slog.Logger
	logLevel        slog.Level
	detailedLogging bool
	tracingEnabled  bool
	tracer          trace.Tracer
	tracerProvider  *sdktrace.TracerProvider
)

// Config controls logger and tracer initialization.
type Config struct {
	Level           string
	Format          string
	DetailedLogging bool
	TracingEnabled  bool
}

// ConfigFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_DETAILED, LOG_TRACING_ENABLED.
func ConfigFromEnv() Config {
	return Config{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
		TracingEnabled:  getEnvOrDefault("LOG_TRACING_ENABLED", "true") == "true",
	}
}

// Init initializes the global logger and tracer from the environment.
func Init() error {
	return InitWithConfig(ConfigFromEnv())
}

// InitWithConfig initializes the logger and tracer with explicit configuration.
func InitWithConfig(cfg Config) error {
	logLevel = parseLogLevel(cfg.Level)
	detailedLogging = cfg.DetailedLogging
	tracingEnabled = cfg.TracingEnabled

	opts := &slog.HandlerOptions{Level: logLevel, AddSource: false}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	if tracingEnabled {
		if err := initTracer(); err != nil {
			globalLogger.Warn("failed to initialize tracer, tracing disabled", "error", err)
			tracingEnabled = false
		}
	}
	return nil
}

func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("entropy"),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return err
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer("entropy")
	return nil
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// StartSpan starts a span named spanName if tracing is enabled, else
// returns the incoming context and its (possibly no-op) current span.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !tracingEnabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func getTraceAttrs(ctx context.Context) []any {
	if !tracingEnabled {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return []any{"trace_id", span.SpanContext().TraceID().String(), "span_id", span.SpanContext().SpanID().String()}
}

func ensureLogger() {
	if globalLogger == nil {
		globalLogger = slog.Default()
	}
}

func Debug(ctx context.Context, msg string, args ...any) { DebugSkip(ctx, 1, msg, args...) }
func Info(ctx context.Context, msg string, args ...any)  { InfoSkip(ctx, 1, msg, args...) }
func Warn(ctx context.Context, msg string, args ...any)  { WarnSkip(ctx, 1, msg, args...) }
func Error(ctx context.Context, msg string, args ...any) { ErrorSkip(ctx, 1, msg, args...) }

// ErrorWithErr logs msg with err attached and records it on the current span.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	ErrorWithErrSkip(ctx, 1, msg, err, args...)
}

// The Skip variants exist so middleware wrappers (internal/*obs) can
// report the actual caller's source location instead of their own,
// mirroring teacher's llmobs.Wrap use of DebugSkip/InfoSkip/ErrorWithErrSkip.
func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2+skip, args...)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2+skip, args...)
}

func ErrorSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 2+skip, args...)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, 2+skip, allArgs...)
}

func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	ensureLogger()
	if traceAttrs := getTraceAttrs(ctx); traceAttrs != nil {
		args = append(traceAttrs, args...)
	}
	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}
	globalLogger.Log(ctx, level, msg, args...)
}

// Boundary emits the `[BOUNDARY: Src→Dst]` diagnostic marker spec.md §6
// requires at tool entry/exit in the ToolBelt.
func Boundary(ctx context.Context, src, dst string, args ...any) {
	marker := fmt.Sprintf("[BOUNDARY: %s→%s]", src, dst)
	allArgs := append([]any{"marker", marker}, args...)
	InfoSkip(ctx, 0, marker, allArgs...)
}

// Diagnostic emits the `[DIAGNOSTIC]` marker used inside the /diagnostic endpoint.
func Diagnostic(ctx context.Context, msg string, args ...any) {
	allArgs := append([]any{"marker", "[DIAGNOSTIC]"}, args...)
	InfoSkip(ctx, 0, "[DIAGNOSTIC] "+msg, allArgs...)
}

func IsDebugEnabled() bool   { return detailedLogging }
func IsTracingEnabled() bool { return tracingEnabled }
