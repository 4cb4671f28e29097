package models

// AlertCooldown records when the last burst alert for an address was
// sent. Persisted so a restart does not replay an alert storm.
type AlertCooldown struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	IP          string    `json:"ip" gorm:"type:varchar(64);uniqueIndex;not null"`
	LastAlertAt int64     `json:"last_alert_at" gorm:"not null"` // unix seconds
	UpdatedAt   LocalTime `json:"updated_at"`
}

// AlertHistory is one fired burst alert.
type AlertHistory struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	IP            string    `json:"ip" gorm:"type:varchar(64);index;not null"`
	Count         int       `json:"count"`
	WindowSeconds int       `json:"window_seconds"`
	Message       string    `json:"message" gorm:"type:text"`
	Delivered     bool      `json:"delivered"`
	CreatedAt     LocalTime `json:"created_at"`
}
