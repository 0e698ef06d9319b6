package db

import "time"

type CaptureModel struct {
	ID        string    `gorm:"type:varchar(40);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_server_utc;index;not null"`

	DeviceTimeUTC string `gorm:"column:device_time_utc;type:varchar(32);not null"`
	TZOffsetMin   int    `gorm:"column:tz_offset_min;not null"`

	Lat       float64  `gorm:"not null"`
	Lon       float64  `gorm:"not null"`
	AccuracyM *float64 `gorm:"column:accuracy_m"`
	AltitudeM *float64 `gorm:"column:altitude_m"`
	Provider  *string  `gorm:"type:varchar(32)"`
	IsMock    bool     `gorm:"not null"`

	DeviceModel string `gorm:"type:varchar(64);not null"`
	AndroidAPI  int    `gorm:"column:android_api;not null"`
	AppVersion  string `gorm:"type:varchar(32);not null"`

	ImageKeyOriginal string `gorm:"type:varchar(256);not null"`
	ImageKeyWeb      string `gorm:"type:varchar(256);not null"`
	HashSHA256       string `gorm:"column:hash_sha256;type:varchar(64);index;not null"`
}

func (CaptureModel) TableName() string {
	return "captures"
}

type AuditEntryModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	CaptureID string    `gorm:"type:varchar(40);index;not null"`
	Field     string    `gorm:"type:varchar(64);not null"`
	OldValue  string    `gorm:"type:varchar(256);not null"`
	NewValue  string    `gorm:"type:varchar(256);not null"`
	ChangedBy string    `gorm:"type:varchar(64);not null"`
	ChangedAt time.Time `gorm:"column:changed_at_utc;not null"`
}

func (AuditEntryModel) TableName() string {
	return "capture_audit"
}
