package models

import "time"

// SectionReviewStatus is the reviewer's verdict on one checklist section.
type SectionReviewStatus string

const (
	// SectionReviewPending means the section awaits review.
	SectionReviewPending SectionReviewStatus = "pending"
	// SectionReviewAccepted means the section passed review.
	SectionReviewAccepted SectionReviewStatus = "accepted"
	// SectionReviewRejected means a reviewer rejected the section; the next
	// resubmission archives it to history before overwriting.
	SectionReviewRejected SectionReviewStatus = "rejected"
)

// WarehouseLocation is a physical site whose licensing checklist is filled in
// section by section and resubmitted until every section passes review.
type WarehouseLocation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"uniqueIndex;size:40;not null" json:"code"`
	Address      string    `gorm:"size:300;not null" json:"address"`
	OperatorName string    `gorm:"size:200;not null" json:"operator_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FireSafetySection is one fire-safety item on a location's checklist.
type FireSafetySection struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	LocationID   uint                `gorm:"not null;index:idx_fire_sections_location_code,unique,priority:1" json:"location_id"`
	Code         string              `gorm:"size:60;not null;index:idx_fire_sections_location_code,unique,priority:2" json:"code"`
	Findings     string              `gorm:"type:text" json:"findings"`
	Compliant    bool                `gorm:"not null;default:false" json:"compliant"`
	ReviewStatus SectionReviewStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"review_status"`
	ReviewNotes  string              `gorm:"type:text" json:"review_notes"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// FireSafetySectionHistory is an immutable pre-overwrite copy of a fire-safety
// section that a reviewer had rejected. Append-only.
type FireSafetySectionHistory struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	SectionID    uint                `gorm:"not null;index" json:"section_id"`
	LocationID   uint                `gorm:"not null;index" json:"location_id"`
	Code         string              `gorm:"size:60;not null" json:"code"`
	Findings     string              `gorm:"type:text" json:"findings"`
	Compliant    bool                `gorm:"not null" json:"compliant"`
	ReviewStatus SectionReviewStatus `gorm:"type:varchar(20);not null" json:"review_status"`
	ReviewNotes  string              `gorm:"type:text" json:"review_notes"`
	ArchivedAt   time.Time           `gorm:"not null" json:"archived_at"`
}

// StorageConditionSection is one storage-condition item on a location's checklist.
type StorageConditionSection struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	LocationID   uint                `gorm:"not null;index:idx_storage_sections_location_code,unique,priority:1" json:"location_id"`
	Code         string              `gorm:"size:60;not null;index:idx_storage_sections_location_code,unique,priority:2" json:"code"`
	TemperatureC float64             `json:"temperature_c"`
	HumidityPct  float64             `json:"humidity_pct"`
	Condition    string              `gorm:"type:text" json:"condition"`
	ReviewStatus SectionReviewStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"review_status"`
	ReviewNotes  string              `gorm:"type:text" json:"review_notes"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// StorageConditionSectionHistory is an immutable pre-overwrite copy of a
// storage-condition section that a reviewer had rejected. Append-only.
type StorageConditionSectionHistory struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	SectionID    uint                `gorm:"not null;index" json:"section_id"`
	LocationID   uint                `gorm:"not null;index" json:"location_id"`
	Code         string              `gorm:"size:60;not null" json:"code"`
	TemperatureC float64             `json:"temperature_c"`
	HumidityPct  float64             `json:"humidity_pct"`
	Condition    string              `gorm:"type:text" json:"condition"`
	ReviewStatus SectionReviewStatus `gorm:"type:varchar(20);not null" json:"review_status"`
	ReviewNotes  string              `gorm:"type:text" json:"review_notes"`
	ArchivedAt   time.Time           `gorm:"not null" json:"archived_at"`
}
