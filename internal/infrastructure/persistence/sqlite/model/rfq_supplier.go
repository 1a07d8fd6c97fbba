package model

import "time"

type RFQSupplier struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey"`
	RFQID        string     `gorm:"column:rfq_id;type:varchar(36);not null;index"`
	SupplierID   string     `gorm:"column:supplier_id;type:varchar(36);not null"`
	SupplierName string     `gorm:"column:supplier_name;type:text;not null"`
	QuotedAmount *float64   `gorm:"column:quoted_amount"`
	Currency     *string    `gorm:"column:currency;type:varchar(8)"`
	LeadTimeDays *int       `gorm:"column:lead_time_days"`
	SentAt       *time.Time `gorm:"column:sent_at"`
	QuotedAt     *time.Time `gorm:"column:quoted_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
}

func (RFQSupplier) TableName() string {
	return "rfq_suppliers"
}
