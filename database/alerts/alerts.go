package alerts

import (
	"time"

	"github.com/mirrorgate/mirrorgate/database/dbcore"
	"github.com/mirrorgate/mirrorgate/database/models"
)

// Record stores one fired alert in the history table.
func Record(ip string, count int, window time.Duration, message string, delivered bool) error {
	db := dbcore.GetDBInstance()
	row := &models.AlertHistory{
		IP:            ip,
		Count:         count,
		WindowSeconds: int(window / time.Second),
		Message:       message,
		Delivered:     delivered,
		CreatedAt:     models.FromTime(time.Now()),
	}
	return db.Create(row).Error
}

// Recent lists the newest alerts, up to limit.
func Recent(limit int) ([]models.AlertHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := dbcore.GetDBInstance()
	var rows []models.AlertHistory
	if err := db.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
