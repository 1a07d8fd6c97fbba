package model

import "time"

// GenerationLock is one row per RFQ with a running generation batch.
type GenerationLock struct {
	RFQID      string    `gorm:"column:rfq_id;type:varchar(36);primaryKey"`
	Owner      string    `gorm:"column:owner;type:varchar(64);not null"`
	AcquiredAt time.Time `gorm:"column:acquired_at;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null;index"`
}

func (GenerationLock) TableName() string {
	return "generation_locks"
}
