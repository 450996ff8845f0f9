package model

import "time"

// QuotaRecord counts queries for one user on one UTC day. Day is the UTC
// date formatted as 2006-01-02. Records are created lazily on the first
// query of a day and kept after rollover for historical reporting; absence
// of a record is distinct from a zero count.
type QuotaRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_quota_user_day" json:"user_id"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_quota_user_day" json:"day"`
	Count     int       `gorm:"not null" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
