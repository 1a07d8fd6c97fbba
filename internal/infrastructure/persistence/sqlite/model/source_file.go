package model

import "time"

type SourceFile struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey"`
	RelativePath string    `gorm:"column:relative_path;type:text;not null"`
	FileName     string    `gorm:"column:file_name;type:text;not null"`
	Extension    string    `gorm:"column:extension;type:varchar(16);not null;index"`
	PartNumber   string    `gorm:"column:part_number;type:text;not null;default:''"`
	Revision     string    `gorm:"column:revision;type:varchar(16);not null;default:''"`
	Version      int       `gorm:"column:version;not null;default:1"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (SourceFile) TableName() string {
	return "source_files"
}
