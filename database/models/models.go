package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const localTimeLayout = "2006-01-02 15:04:05"

// LocalTime stores timestamps at second precision and serializes them
// in a stable, human-readable layout.
type LocalTime time.Time

func FromTime(t time.Time) LocalTime {
	return LocalTime(t.Truncate(time.Second))
}

func (t LocalTime) ToTime() time.Time {
	return time.Time(t)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + tt.Format(localTimeLayout) + `"`), nil
}

func (t *LocalTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == `""` || s == "null" {
		*t = LocalTime(time.Time{})
		return nil
	}
	tt, err := time.ParseInLocation(`"`+localTimeLayout+`"`, s, time.Local)
	if err != nil {
		return err
	}
	*t = LocalTime(tt)
	return nil
}

func (t LocalTime) Value() (driver.Value, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return nil, nil
	}
	return tt, nil
}

func (t *LocalTime) Scan(v interface{}) error {
	switch value := v.(type) {
	case nil:
		*t = LocalTime(time.Time{})
		return nil
	case time.Time:
		*t = LocalTime(value)
		return nil
	case string:
		tt, err := time.ParseInLocation(localTimeLayout, value, time.Local)
		if err != nil {
			return err
		}
		*t = LocalTime(tt)
		return nil
	case []byte:
		tt, err := time.ParseInLocation(localTimeLayout, string(value), time.Local)
		if err != nil {
			return err
		}
		*t = LocalTime(tt)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", v)
	}
}
