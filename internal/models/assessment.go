package models

import "time"

// Assessment is an expert assessment of a warehouse operator. It is the
// canonical aggregate mutated by approved AssessmentRequests and the parent
// scope for sub-sections.
type Assessment struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"uniqueIndex;size:200;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Methodology string       `gorm:"size:120" json:"methodology"`
	SubSections []SubSection `gorm:"foreignKey:AssessmentID" json:"sub_sections,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SubSection is one reviewable section of an assessment. Names are unique
// within the parent assessment, not globally.
type SubSection struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"not null;index:idx_sub_sections_scope_name,unique,priority:1" json:"assessment_id"`
	Name         string    `gorm:"size:200;not null;index:idx_sub_sections_scope_name,unique,priority:2" json:"name"`
	Content      string    `gorm:"type:text" json:"content"`
	Weight       int       `gorm:"not null;default:0" json:"weight"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssessmentSnapshot is the typed "before" image captured when a request
// targets an existing assessment. It is serialized into the request's
// original_data column for diffing and audit.
type AssessmentSnapshot struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Methodology string    `json:"methodology"`
	CapturedAt  time.Time `json:"captured_at"`
}

// SnapshotOf copies the current field values of an assessment.
func SnapshotOf(a *Assessment) AssessmentSnapshot {
	return AssessmentSnapshot{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Methodology: a.Methodology,
		CapturedAt:  time.Now().UTC(),
	}
}

// SectionSnapshot is the typed "before" image of a sub-section.
type SectionSnapshot struct {
	ID           uint      `json:"id"`
	AssessmentID uint      `json:"assessment_id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	Weight       int       `json:"weight"`
	CapturedAt   time.Time `json:"captured_at"`
}

// SnapshotOfSection copies the current field values of a sub-section.
func SnapshotOfSection(s *SubSection) SectionSnapshot {
	return SectionSnapshot{
		ID:           s.ID,
		AssessmentID: s.AssessmentID,
		Name:         s.Name,
		Content:      s.Content,
		Weight:       s.Weight,
		CapturedAt:   time.Now().UTC(),
	}
}
