package models

import "time"

// InspectionReport is the canonical record of a site inspection, with one
// Submission row per inspected line item.
type InspectionReport struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"uniqueIndex;size:200;not null" json:"title"`
	Inspector   string       `gorm:"size:160;not null" json:"inspector"`
	InspectedAt time.Time    `json:"inspected_at"`
	Summary     string       `gorm:"type:text" json:"summary"`
	Submissions []Submission `gorm:"foreignKey:ReportID" json:"submissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Submission is a single line item inside an inspection report. Line numbers
// are unique within the report and are how request payloads and document slots
// address individual items.
type Submission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  uint      `gorm:"not null;index:idx_submissions_report_line,unique,priority:1" json:"report_id"`
	LineNo    int       `gorm:"not null;index:idx_submissions_report_line,unique,priority:2" json:"line_no"`
	Item      string    `gorm:"size:200;not null" json:"item"`
	Result    string    `gorm:"size:40;not null" json:"result"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportSnapshot is the typed "before" image of a report, including its line
// items at capture time.
type ReportSnapshot struct {
	ID          uint                 `json:"id"`
	Title       string               `json:"title"`
	Inspector   string               `json:"inspector"`
	InspectedAt time.Time            `json:"inspected_at"`
	Summary     string               `json:"summary"`
	Items       []SubmissionSnapshot `json:"items"`
	CapturedAt  time.Time            `json:"captured_at"`
}

// SubmissionSnapshot is one line item inside a ReportSnapshot.
type SubmissionSnapshot struct {
	ID     uint   `json:"id"`
	LineNo int    `json:"line_no"`
	Item   string `json:"item"`
	Result string `json:"result"`
	Notes  string `json:"notes"`
}

// SnapshotOfReport copies the current field values of a report and its items.
func SnapshotOfReport(r *InspectionReport) ReportSnapshot {
	snap := ReportSnapshot{
		ID:          r.ID,
		Title:       r.Title,
		Inspector:   r.Inspector,
		InspectedAt: r.InspectedAt,
		Summary:     r.Summary,
		CapturedAt:  time.Now().UTC(),
	}
	for _, s := range r.Submissions {
		snap.Items = append(snap.Items, SubmissionSnapshot{
			ID:     s.ID,
			LineNo: s.LineNo,
			Item:   s.Item,
			Result: s.Result,
			Notes:  s.Notes,
		})
	}
	return snap
}
