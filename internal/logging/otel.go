package logging

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore writes to stdout and, when cfg.OTEL is set and a provider is
// available, tees every entry into the OpenTelemetry logs bridge.
func newCore(cfg *Config, otelProvider log.LoggerProvider) zapcore.Core {
	stdout := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(os.Stdout), cfg.Level)
	if !cfg.OTEL || otelProvider == nil {
		return stdout
	}
	otelCore := otelzap.NewCore("decisiond", otelzap.WithLoggerProvider(otelProvider))
	return zapcore.NewTee(stdout, otelCore)
}
