package log

import (
	"log/slog"
	"os"
	"sync"

	gormlogger "gorm.io/gorm/logger"
)

var (
	mu           sync.RWMutex
	gormLogLevel = gormlogger.Warn
)

// SetupGlobalLogger installs a text slog handler as the process-wide
// default logger.
func SetupGlobalLogger(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// SetGormLogLevel controls how chatty gorm is. Read by dbcore when the
// connection is opened.
func SetGormLogLevel(level gormlogger.LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	gormLogLevel = level
}

func GormLogLevel() gormlogger.LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return gormLogLevel
}
