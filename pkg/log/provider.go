// Package log provides the default logger provider used across the toolkit.
//
// This file wires the Logger interface to Go's log/slog default logger and
// exposes the package-level accessors the rest of the codebase calls. It also
// offers an optional zerolog bridge for the warning machinery in pkg/errors,
// so structured warnings flow through the same sink as regular records.

package log

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/rs/zerolog"

	attrerrors "github.com/mathiasfls/attrition/pkg/errors"
)

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

// Debug implements Logger.Debug.
func (s *slogLogger) Debug(msg string, fields ...any) {
	s.logger.Debug(msg, fields...)
}

// Info implements Logger.Info.
func (s *slogLogger) Info(msg string, fields ...any) {
	s.logger.Info(msg, fields...)
}

// Warn implements Logger.Warn.
func (s *slogLogger) Warn(msg string, fields ...any) {
	s.logger.Warn(msg, fields...)
}

// Error implements Logger.Error.
func (s *slogLogger) Error(msg string, fields ...any) {
	s.logger.Error(msg, fields...)
}

// With implements Logger.With.
func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{logger: s.logger.With(fields...)}
}

// Enabled implements Logger.Enabled.
func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.logger.Enabled(ctx, slog.Level(level))
}

// defaultProvider creates loggers backed by slog's process-wide default,
// so SetupLogger controls the output format of every component logger.
type defaultProvider struct {
	level *slog.LevelVar
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *defaultProvider) GetLogger() Logger {
	return &slogLogger{logger: slog.Default()}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *defaultProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *defaultProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = &defaultProvider{level: &slog.LevelVar{}}
)

// SetProvider replaces the package-level logger provider.
// Tests use this to capture component logs via TestLoggerProvider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
//
// Example:
//
//	logger := log.GetLoggerWithName("ensemble.boosting")
//	logger.Info("Training started", log.SamplesKey, n)
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// BindWarnings routes pkg/errors warnings through a zerolog logger so typed
// warnings (ConvergenceWarning, UndefinedMetricWarning, ...) are emitted as
// structured events instead of plain log lines.
func BindWarnings(logger zerolog.Logger) {
	attrerrors.SetZerologWarnFunc(func(warning error) {
		event := logger.Warn()
		if marshaler, ok := warning.(zerolog.LogObjectMarshaler); ok {
			event.EmbedObject(marshaler)
		}
		event.Msg(warning.Error())
	})
}

// BindDefaultWarnings installs a stderr zerolog warning sink.
func BindDefaultWarnings() {
	BindWarnings(zerolog.New(os.Stderr).With().Timestamp().Logger())
}
