package model

import "time"

// RFQItem carries the STEP and PDF export records as flat column pairs.
type RFQItem struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	RFQID         string    `gorm:"column:rfq_id;type:varchar(36);not null;index:idx_rfq_items_rfq_line,priority:1"`
	LineNumber    int       `gorm:"column:line_number;not null;index:idx_rfq_items_rfq_line,priority:2"`
	SourceFileID  string    `gorm:"column:source_file_id;type:varchar(36);not null;index"`
	PartNumber    string    `gorm:"column:part_number;type:text;not null;default:''"`
	Description   string    `gorm:"column:description;type:text;not null;default:''"`
	Revision      string    `gorm:"column:revision;type:varchar(16);not null;default:''"`
	Quantity      int       `gorm:"column:quantity;not null"`
	Unit          string    `gorm:"column:unit;type:varchar(16);not null;default:'pcs'"`
	Material      string    `gorm:"column:material;type:text;not null;default:''"`
	Finish        string    `gorm:"column:finish;type:text;not null;default:''"`
	Tolerance     string    `gorm:"column:tolerance;type:text;not null;default:''"`
	Notes         string    `gorm:"column:notes;type:text;not null;default:''"`
	Configuration string    `gorm:"column:configuration;type:text;not null;default:''"`
	StepGenerated bool      `gorm:"column:step_generated;not null;default:false"`
	StepPath      *string   `gorm:"column:step_path;type:text"`
	StepSize      *int64    `gorm:"column:step_size"`
	PDFGenerated  bool      `gorm:"column:pdf_generated;not null;default:false"`
	PDFPath       *string   `gorm:"column:pdf_path;type:text"`
	PDFSize       *int64    `gorm:"column:pdf_size"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (RFQItem) TableName() string {
	return "rfq_items"
}
