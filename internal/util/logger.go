package util

import (
	"context"
	"fmt"
	"log/slog"
)

// Logger adds printf style helpers on top of the global slog logger.
type Logger struct {
	slogLogger *slog.Logger
}

func GetCompatLogger() *Logger {
	return &Logger{slogLogger: GetLogger()}
}

func (l *Logger) logf(level slog.Level, format string, v ...interface{}) {
	ctx := context.Background()
	if !l.slogLogger.Enabled(ctx, level) {
		return
	}
	l.slogLogger.Log(ctx, level, fmt.Sprintf(format, v...))
}

func (l *Logger) Printf(format string, v ...interface{}) { l.logf(slog.LevelInfo, format, v...) }
func (l *Logger) Infof(format string, v ...interface{})  { l.logf(slog.LevelInfo, format, v...) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.logf(slog.LevelDebug, format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.logf(slog.LevelWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.logf(slog.LevelError, format, v...) }
