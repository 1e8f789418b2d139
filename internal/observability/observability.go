// Package observability configures the process-wide logging pipeline.
//
// Plain text/json formats log straight to stderr through slog handlers.
// The otlp formats bridge slog into the OpenTelemetry log SDK (otelslog)
// with a minimum-severity processor, exporting over OTLP http/grpc (the
// standard OTEL_EXPORTER_OTLP_* environment variables configure the
// endpoint) or to stdout for local pipeline debugging.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const loggerName = "sessiond"

var (
	mu       sync.Mutex
	provider *sdklog.LoggerProvider
)

// Instrument installs the default slog logger for the given minimum level
// and output format (text, json, otlp-http, otlp-grpc, otlp-stdout).
func Instrument(level slog.Level, format string) error {
	var handler slog.Handler

	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "otlp-http", "otlp-grpc", "otlp-stdout":
		p, err := newLoggerProvider(format, level)
		if err != nil {
			return fmt.Errorf("building otel log pipeline: %w", err)
		}
		mu.Lock()
		provider = p
		mu.Unlock()
		handler = otelslog.NewHandler(loggerName, otelslog.WithLoggerProvider(p))
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Shutdown flushes and stops the exporter pipeline, if one was installed.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := provider
	provider = nil
	mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}

func newLoggerProvider(format string, level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newExporter(format)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

func newExporter(format string) (sdklog.Exporter, error) {
	switch format {
	case "otlp-http":
		return otlploghttp.New(context.Background())
	case "otlp-grpc":
		return otlploggrpc.New(context.Background())
	case "otlp-stdout":
		return stdoutlog.New()
	default:
		return nil, fmt.Errorf("unsupported exporter format: %s", format)
	}
}

// severity maps an slog level to the minimum otel severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
