package model

import "time"

type RFQ struct {
	ID                      string     `gorm:"column:id;type:varchar(36);primaryKey"`
	NumberSeq               int64      `gorm:"column:number_seq;not null;uniqueIndex"`
	Number                  string     `gorm:"column:number;type:varchar(32);not null;uniqueIndex"`
	Title                   string     `gorm:"column:title;type:text;not null"`
	Status                  string     `gorm:"column:status;type:varchar(32);not null;index"`
	BillingAddressID        *string    `gorm:"column:billing_address_id;type:varchar(36)"`
	ShippingAddressID       *string    `gorm:"column:shipping_address_id;type:varchar(36)"`
	RequiresSamples         bool       `gorm:"column:requires_samples;not null;default:false"`
	RequiresFirstArticle    bool       `gorm:"column:requires_first_article;not null;default:false"`
	RequiresQualityReport   bool       `gorm:"column:requires_quality_report;not null;default:false"`
	ReleaseFilesGenerated   bool       `gorm:"column:release_files_generated;not null;default:false"`
	ReleaseFilesGeneratedAt *time.Time `gorm:"column:release_files_generated_at"`
	Notes                   string     `gorm:"column:notes;type:text;not null;default:''"`
	DueDate                 *time.Time `gorm:"column:due_date"`
	CreatedAt               time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt               time.Time  `gorm:"column:updated_at;not null"`
}

func (RFQ) TableName() string {
	return "rfqs"
}
