package dbcore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mirrorgate/mirrorgate/database/models"
	logutil "github.com/mirrorgate/mirrorgate/utils/log"
)

var (
	instance *gorm.DB
	mu       sync.RWMutex
)

// Open connects the database and migrates the schema. driver is
// "sqlite" (default) or "mysql"; an empty sqlite dsn falls back to
// <dataDir>/mirrorgate.db.
func Open(driver, dsn, dataDir string) error {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if dsn == "" {
			dsn = filepath.Join(dataDir, "mirrorgate.db")
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		if dsn == "" {
			return fmt.Errorf("dbcore: mysql driver requires a dsn")
		}
		dialector = mysql.Open(dsn)
	default:
		return fmt.Errorf("dbcore: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logutil.GormLogLevel()),
	})
	if err != nil {
		return fmt.Errorf("dbcore: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(
		&models.AlertCooldown{},
		&models.AlertHistory{},
	); err != nil {
		return fmt.Errorf("dbcore: migrate: %w", err)
	}

	mu.Lock()
	instance = db
	mu.Unlock()
	return nil
}

// GetDBInstance returns the shared connection. Open must have been
// called first.
func GetDBInstance() *gorm.DB {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("dbcore: database not initialized")
	}
	return instance
}

// Ready reports whether Open has succeeded.
func Ready() bool {
	mu.RLock()
	defer mu.RUnlock()
	return instance != nil
}
