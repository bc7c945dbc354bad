package models

import (
	"encoding/json"
	"time"
)

// ReportRequest is a provisional proposal against an inspection report. It is
// the richest of the three request shapes: the payload includes proposed line
// items, and staged documents may address either the report itself or a single
// line item.
type ReportRequest struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	ReportID *uint             `gorm:"index" json:"report_id"`
	Report   *InspectionReport `gorm:"foreignKey:ReportID" json:"report,omitempty"`
	Action   RequestAction     `gorm:"type:varchar(10);not null" json:"action"`

	// Proposed field values.
	Title       string              `gorm:"size:200;not null" json:"title"`
	Inspector   string              `gorm:"size:160" json:"inspector"`
	InspectedAt time.Time           `json:"inspected_at"`
	Summary     string              `gorm:"type:text" json:"summary"`
	Items       []ReportRequestItem `gorm:"foreignKey:RequestID" json:"items,omitempty"`

	// OriginalData holds a serialized ReportSnapshot when the target existed
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

// ReportRequestItem is one proposed line item carried by a ReportRequest.
type ReportRequestItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	RequestID uint   `gorm:"not null;index" json:"request_id"`
	LineNo    int    `gorm:"not null" json:"line_no"`
	Item      string `gorm:"size:200;not null" json:"item"`
	Result    string `gorm:"size:40;not null" json:"result"`
	Notes     string `gorm:"type:text" json:"notes"`
}

// SetOriginal serializes the snapshot into the original_data column.
func (r *ReportRequest) SetOriginal(snap ReportSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s := string(raw)
	r.OriginalData = &s
	return nil
}

// Original decodes the stored snapshot, if any.
func (r *ReportRequest) Original() (*ReportSnapshot, error) {
	if r.OriginalData == nil {
		return nil, nil
	}
	var snap ReportSnapshot
	if err := json.Unmarshal([]byte(*r.OriginalData), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
