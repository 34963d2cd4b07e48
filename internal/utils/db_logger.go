package utils

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"gorm.io/gorm/logger"
)

// QuietGormLogger wraps a gorm logger and drops routine queries matching
// any of the given patterns. Matching queries are still logged when they
// fail or exceed the slow threshold.
type QuietGormLogger struct {
	logger.Interface
	quietPatterns []string
	slowThreshold time.Duration
}

// NewQuietGormLogger creates a new logger that silences the given query patterns
func NewQuietGormLogger(l logger.Interface, quietPatterns ...string) *QuietGormLogger {
	return &QuietGormLogger{
		Interface:     l,
		quietPatterns: quietPatterns,
		slowThreshold: time.Second,
	}
}

// LogMode implements logger.Interface
func (l *QuietGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &QuietGormLogger{
		Interface:     l.Interface.LogMode(level),
		quietPatterns: l.quietPatterns,
		slowThreshold: l.slowThreshold,
	}
}

// Trace implements logger.Interface
func (l *QuietGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	sql, rows := fc()

	if err == nil && time.Since(begin) < l.slowThreshold && l.isQuiet(sql) {
		return
	}

	caller := findCaller()
	l.Interface.Trace(ctx, begin, func() (string, int64) {
		if caller != "" {
			return fmt.Sprintf("[Caller: %s] %s", caller, sql), rows
		}
		return sql, rows
	}, err)
}

func (l *QuietGormLogger) isQuiet(sql string) bool {
	for _, pattern := range l.quietPatterns {
		if strings.Contains(sql, pattern) {
			return true
		}
	}
	return false
}

// findCaller returns the first frame outside gorm and this package
func findCaller() string {
	for i := 2; i < 15; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "gorm.io") || strings.Contains(file, "internal/utils/") {
			continue
		}

		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if idx := strings.LastIndexByte(name, '.'); idx != -1 {
				name = name[idx+1:]
			}
			return fmt.Sprintf("%s() at %s:%d", name, file, line)
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}
