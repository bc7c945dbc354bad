package models

import (
	"encoding/json"
	"time"
)

// AssessmentRequest is a provisional proposal to create, update, or delete an
// expert assessment. It stays pending until a reviewer decides; the decision is
// terminal and the row is never reviewed twice.
//
// At most one pending request may exist per target assessment, and at most one
// pending create per proposed name. Both rules are checked inside the submit
// transaction and backed by partial unique indexes.
type AssessmentRequest struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	AssessmentID *uint         `gorm:"index" json:"assessment_id"`
	Assessment   *Assessment   `gorm:"foreignKey:AssessmentID" json:"assessment,omitempty"`
	Action       RequestAction `gorm:"type:varchar(10);not null" json:"action"`

	// Proposed field values.
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Methodology string `gorm:"size:120" json:"methodology"`

	// OriginalData holds a serialized AssessmentSnapshot when the target
	// existed at submission time; null for creates.
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
func (r *AssessmentRequest) SetOriginal(snap AssessmentSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s := string(raw)
	r.OriginalData = &s
	return nil
}

// Original decodes the stored snapshot, if any.
func (r *AssessmentRequest) Original() (*AssessmentSnapshot, error) {
	if r.OriginalData == nil {
		return nil, nil
	}
	var snap AssessmentSnapshot
	if err := json.Unmarshal([]byte(*r.OriginalData), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
