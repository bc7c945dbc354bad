package models

import (
	"encoding/json"
	"time"
)

// SectionRequest is a provisional proposal against one sub-section of an
// assessment. Unlike AssessmentRequest it always carries its parent scope:
// creates are checked for name collisions inside that assessment only.
type SectionRequest struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	AssessmentID uint          `gorm:"not null;index" json:"assessment_id"`
	Assessment   *Assessment   `gorm:"foreignKey:AssessmentID" json:"assessment,omitempty"`
	SectionID    *uint         `gorm:"index" json:"section_id"`
	Section      *SubSection   `gorm:"foreignKey:SectionID" json:"section,omitempty"`
	Action       RequestAction `gorm:"type:varchar(10);not null" json:"action"`

	// Proposed field values.
	Name    string `gorm:"size:200;not null" json:"name"`
	Content string `gorm:"type:text" json:"content"`
	Weight  int    `gorm:"not null;default:0" json:"weight"`

	// OriginalData holds a serialized SectionSnapshot when the target existed
	// at submission time; null for creates.
	OriginalData *string `gorm:"type:text" json:"original_data"`

	Status          RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequestedByID   uint          `gorm:"not null;index" json:"requested_by_id"`
	RequestedByUser *User         `gorm:"foreignKey:RequestedByID" json:"requested_by_user,omitempty"`
	ReviewedByID    *uint         `json:"reviewed_by_id"`
	ReviewedByUser  *User         `gorm:"foreignKey:ReviewedByID" json:"reviewed_by_user,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at"`
	ReviewNotes     string        `gorm:"type:text" json:"review_notes"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// SetOriginal serializes the snapshot into the original_data column.
func (r *SectionRequest) SetOriginal(snap SectionSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s := string(raw)
	r.OriginalData = &s
	return nil
}

// Original decodes the stored snapshot, if any.
func (r *SectionRequest) Original() (*SectionSnapshot, error) {
	if r.OriginalData == nil {
		return nil, nil
	}
	var snap SectionSnapshot
	if err := json.Unmarshal([]byte(*r.OriginalData), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
