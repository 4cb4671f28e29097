package main

import (
	"log"
	"log/slog"

	"github.com/mirrorgate/mirrorgate/cmd"
	"github.com/mirrorgate/mirrorgate/utils"
	logutil "github.com/mirrorgate/mirrorgate/utils/log"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if utils.VersionHash == "unknown" {
		logutil.SetupGlobalLogger(slog.LevelDebug)
		logutil.SetGormLogLevel(gormlogger.Info)
	} else {
		logutil.SetupGlobalLogger(slog.LevelInfo)
		logutil.SetGormLogLevel(gormlogger.Silent)
	}

	log.Printf("Mirrorgate %s (hash: %s)", utils.CurrentVersion, utils.VersionHash)

	cmd.Execute()
}
