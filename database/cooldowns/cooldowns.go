package cooldowns

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirrorgate/mirrorgate/database/dbcore"
	"github.com/mirrorgate/mirrorgate/database/models"
)

// All returns every persisted cooldown stamp keyed by address.
func All() (map[string]int64, error) {
	db := dbcore.GetDBInstance()
	var rows []models.AlertCooldown
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.IP] = r.LastAlertAt
	}
	return out, nil
}

// Get returns the last alert stamp for ip, zero when none exists.
func Get(ip string) (int64, error) {
	db := dbcore.GetDBInstance()
	var row models.AlertCooldown
	if err := db.Where("ip = ?", ip).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.LastAlertAt, nil
}

// Touch upserts the cooldown stamp for ip.
func Touch(ip string, at time.Time) error {
	db := dbcore.GetDBInstance()
	row := models.AlertCooldown{
		IP:          ip,
		LastAlertAt: at.Unix(),
		UpdatedAt:   models.FromTime(at),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_alert_at", "updated_at"}),
	}).Create(&row).Error
}

// PruneBefore removes stamps older than cutoff so the table does not
// accumulate addresses that stopped misbehaving long ago.
func PruneBefore(cutoff time.Time) (int64, error) {
	db := dbcore.GetDBInstance()
	res := db.Where("last_alert_at < ?", cutoff.Unix()).Delete(&models.AlertCooldown{})
	return res.RowsAffected, res.Error
}
