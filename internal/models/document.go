package models

import "time"

// Request kinds scoping staged documents to their owning request table.
const (
	RequestKindAssessment = "assessment"
	RequestKindSection    = "section"
	RequestKindReport     = "report"
	RequestKindChecklist  = "checklist"
)

// Owner types for the polymorphic documentable relation on canonical documents.
const (
	OwnerTypeAssessment     = "assessment"
	OwnerTypeSubSection     = "sub_section"
	OwnerTypeReport         = "inspection_report"
	OwnerTypeSubmission     = "submission"
	OwnerTypeFireSection    = "fire_safety_section"
	OwnerTypeStorageSection = "storage_condition_section"
)

// StagedDocument is an encrypted file attached to a pending change request.
// It lives in the staging area, outside canonical storage, and exists only
// while its owning request is pending: approval moves the ciphertext into
// canonical storage and replaces this row with a Document; rejection deletes
// the ciphertext and the row.
type StagedDocument struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RequestKind  string    `gorm:"size:20;not null;index:idx_staged_documents_request,priority:1" json:"request_kind"`
	RequestID    uint      `gorm:"not null;index:idx_staged_documents_request,priority:2" json:"request_id"`
	Slot         string    `gorm:"size:60;not null" json:"slot"`
	Path         string    `gorm:"size:500;not null" json:"-"`
	IV           string    `gorm:"size:64" json:"-"`
	AuthTag      string    `gorm:"size:64" json:"-"`
	MimeType     string    `gorm:"size:120;not null" json:"mime_type"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document is a permanent encrypted-at-rest file record owned by a resolved
// aggregate via the (owner_type, owner_id) pair. StagedPath records where the
// ciphertext was at promotion time; the startup reconciliation sweep uses it to
// finish a move interrupted between transaction commit and rename.
type Document struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OwnerType    string    `gorm:"size:40;not null;index:idx_documents_owner,priority:1" json:"owner_type"`
	OwnerID      uint      `gorm:"not null;index:idx_documents_owner,priority:2" json:"owner_id"`
	Slot         string    `gorm:"size:60;not null" json:"slot"`
	Path         string    `gorm:"size:500;not null" json:"-"`
	StagedPath   string    `gorm:"size:500" json:"-"`
	IV           string    `gorm:"size:64" json:"-"`
	AuthTag      string    `gorm:"size:64" json:"-"`
	MimeType     string    `gorm:"size:120;not null" json:"mime_type"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
