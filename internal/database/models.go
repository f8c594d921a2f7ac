package database

import (
	"time"
)

// HourlyRain is one hour of summed rain buckets for a station, in inches
type HourlyRain struct {
	Hour  time.Time `gorm:"column:hour"`
	Depth float64   `gorm:"column:depth"`
}
