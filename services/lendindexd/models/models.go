package models

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is one protocol lifecycle event flattened for SQL queries. The
// raw attribute map is retained as JSON alongside the indexed columns.
type EventRecord struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Sequence      uint64 `gorm:"uniqueIndex"`
	Type          string `gorm:"size:64;index"`
	OfferID       string `gorm:"size:32;index"`
	AssetContract string `gorm:"size:90;index"`
	AssetID       string `gorm:"size:32;index"`
	Lender        string `gorm:"size:90;index"`
	Borrower      string `gorm:"size:90;index"`
	Attributes    string `gorm:"type:text"`
	CreatedAt     time.Time
}

// AutoMigrate creates or upgrades the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
