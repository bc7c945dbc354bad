package models

// RequestAction is the kind of change a request proposes against its target.
type RequestAction string

const (
	// RequestActionCreate proposes a new aggregate (no target yet).
	RequestActionCreate RequestAction = "create"
	// RequestActionUpdate proposes overwriting an existing aggregate.
	RequestActionUpdate RequestAction = "update"
	// RequestActionDelete proposes removing an existing aggregate.
	RequestActionDelete RequestAction = "delete"
)

// ValidRequestAction reports whether the given action is one of create/update/delete.
func ValidRequestAction(a RequestAction) bool {
	switch a {
	case RequestActionCreate, RequestActionUpdate, RequestActionDelete:
		return true
	default:
		return false
	}
}

// RequestStatus defines lifecycle states for change requests.
type RequestStatus string

const (
	// RequestStatusPending indicates the request is awaiting review.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusApproved indicates the request was accepted and applied.
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusRejected indicates the request was denied.
	RequestStatusRejected RequestStatus = "rejected"
)

// UploadedFile is the typed value constructed once at the HTTP boundary for
// every multipart file part. Services and the staging store never touch
// multipart headers directly.
type UploadedFile struct {
	Bytes        []byte
	OriginalName string
	MimeType     string
	Size         int64
}
