// Package service implements the change-request lifecycle: submission with the
// conflict guard, the terminal review state machine, and the apply engine that
// mutates canonical aggregates inside the review transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"warelic/internal/cache"
	"warelic/internal/models"
	"warelic/internal/observability"
	"warelic/internal/repository"
	"warelic/internal/storage"

	"gorm.io/gorm"
)

// AssessmentRequestService owns the lifecycle of assessment change requests.
type AssessmentRequestService struct {
	db          *gorm.DB
	requests    repository.AssessmentRequestRepository
	assessments repository.AssessmentRepository
	documents   repository.DocumentRepository
	users       repository.UserRepository
	store       *storage.Store
}

// SubmitAssessmentRequestInput carries one proposed assessment change.
type SubmitAssessmentRequestInput struct {
	RequesterID  uint
	Action       models.RequestAction
	AssessmentID *uint
	Name         string
	Description  string
	Methodology  string
	Files        map[string]models.UploadedFile
}

// ListRequestsInput is the shared filter shape for request listings.
type ListRequestsInput struct {
	Status models.RequestStatus
	Limit  int
	Offset int
	Search string
}

// ReviewInput carries one reviewer decision.
type ReviewInput struct {
	RequestID  uint
	ReviewerID uint
	Approve    bool
	Notes      string
}

// NewAssessmentRequestService creates a new assessment request service.
func NewAssessmentRequestService(
	db *gorm.DB,
	requests repository.AssessmentRequestRepository,
	assessments repository.AssessmentRepository,
	documents repository.DocumentRepository,
	users repository.UserRepository,
	store *storage.Store,
) *AssessmentRequestService {
	return &AssessmentRequestService{
		db:          db,
		requests:    requests,
		assessments: assessments,
		documents:   documents,
		users:       users,
		store:       store,
	}
}

// Submit validates the proposal, runs the conflict guard and the request
// insert in one transaction, and stages any uploaded documents against the new
// request id. A failed transaction leaves no staged files behind.
func (s *AssessmentRequestService) Submit(ctx context.Context, in SubmitAssessmentRequestInput) (*models.AssessmentRequest, error) {
	if !models.ValidRequestAction(in.Action) {
		return nil, models.NewValidationError("Action must be one of create, update, delete")
	}
	switch in.Action {
	case models.RequestActionCreate:
		if in.AssessmentID != nil {
			return nil, models.NewValidationError("A create request must not reference an existing assessment")
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, models.NewValidationError("Name is required")
		}
	case models.RequestActionUpdate:
		if in.AssessmentID == nil {
			return nil, models.NewValidationError("An update request must reference an assessment")
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, models.NewValidationError("Name is required")
		}
	case models.RequestActionDelete:
		if in.AssessmentID == nil {
			return nil, models.NewValidationError("A delete request must reference an assessment")
		}
	}

	req := &models.AssessmentRequest{
		AssessmentID:  in.AssessmentID,
		Action:        in.Action,
		Name:          in.Name,
		Description:   in.Description,
		Methodology:   in.Methodology,
		Status:        models.RequestStatusPending,
		RequestedByID: in.RequesterID,
	}

	var staged []*models.StagedDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		assessments := s.assessments.WithTx(tx)
		documents := s.documents.WithTx(tx)

		if in.AssessmentID != nil {
			target, err := assessments.GetByID(ctx, *in.AssessmentID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Assessment", *in.AssessmentID)
			}
			if err != nil {
				return err
			}
			pending, err := requests.PendingExistsForTarget(ctx, target.ID)
			if err != nil {
				return err
			}
			if pending {
				return models.NewConflictError("A pending request already exists for this assessment")
			}
			if err := req.SetOriginal(models.SnapshotOf(target)); err != nil {
				return err
			}
			if in.Action == models.RequestActionDelete {
				req.Name = target.Name
			}
		} else {
			pending, err := requests.PendingExistsForName(ctx, in.Name)
			if err != nil {
				return err
			}
			if pending {
				return models.NewConflictError("A pending create request already proposes this name")
			}
			exists, err := assessments.NameExists(ctx, in.Name, 0)
			if err != nil {
				return err
			}
			if exists {
				return models.NewConflictError("An assessment with this name already exists")
			}
		}

		if err := requests.Create(ctx, req); err != nil {
			return err
		}

		for _, slot := range sortedSlots(in.Files) {
			doc, err := s.store.Stage(ctx, models.RequestKindAssessment, req.ID, slot, in.Files[slot])
			if err != nil {
				return err
			}
			staged = append(staged, doc)
			if err := documents.CreateStaged(ctx, doc); err != nil {
				return err
			}
			observability.StagedBytes.WithLabelValues(models.RequestKindAssessment).Add(float64(doc.SizeBytes))
		}
		return nil
	})
	if err != nil {
		for _, doc := range staged {
			s.store.Discard(doc)
		}
		return nil, err
	}

	observability.RequestsSubmitted.WithLabelValues(models.RequestKindAssessment, string(in.Action)).Inc()
	return req, nil
}

// Get returns one request with its staged document metadata. Hot reads go
// through the cache; review and delete invalidate.
func (s *AssessmentRequestService) Get(ctx context.Context, id uint) (*models.AssessmentRequest, []*models.StagedDocument, error) {
	var req models.AssessmentRequest
	err := cache.Aside(ctx, cache.AssessmentRequestKey(id), &req, cache.RequestTTL, func() error {
		got, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		req = *got
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, models.NewNotFoundError("Assessment request", id)
	}
	if err != nil {
		return nil, nil, err
	}

	staged, err := s.documents.ListStaged(ctx, models.RequestKindAssessment, id)
	if err != nil {
		return nil, nil, err
	}
	return &req, staged, nil
}

// List returns a page of requests plus the unpaged total.
func (s *AssessmentRequestService) List(ctx context.Context, in ListRequestsInput) ([]*models.AssessmentRequest, int64, error) {
	return s.requests.List(ctx, in.Status, in.Limit, in.Offset, in.Search)
}

// Delete withdraws a pending request. Only the requester may withdraw, and
// only while the request is pending. Staged files are removed after the rows.
func (s *AssessmentRequestService) Delete(ctx context.Context, id, requesterID uint) error {
	req, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Assessment request", id)
	}
	if err != nil {
		return err
	}
	if req.Status != models.RequestStatusPending {
		return models.NewValidationError("Only pending requests can be deleted")
	}
	if req.RequestedByID != requesterID {
		return models.NewUnauthorizedError("You can only delete your own requests")
	}

	staged, err := s.documents.ListStaged(ctx, models.RequestKindAssessment, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.documents.WithTx(tx).DeleteStagedByRequest(ctx, models.RequestKindAssessment, id); err != nil {
			return err
		}
		return s.requests.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, doc := range staged {
		s.store.Discard(doc)
	}
	return nil
}

// Review records a terminal verdict. Approval runs the apply engine inside the
// same transaction as the status write, so any apply failure rolls the whole
// decision back and the request observably stays pending. File moves and
// deletions happen only after commit.
func (s *AssessmentRequestService) Review(ctx context.Context, in ReviewInput) (*models.AssessmentRequest, error) {
	if err := requireReviewer(ctx, s.users, in.ReviewerID); err != nil {
		return nil, err
	}

	var (
		reviewed *models.AssessmentRequest
		moves    []storage.PendingMove
		discards []*models.StagedDocument
		orphans  []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		documents := s.documents.WithTx(tx)

		req, err := requests.GetByID(ctx, in.RequestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Assessment request", in.RequestID)
		}
		if err != nil {
			return err
		}
		if req.Status != models.RequestStatusPending {
			return models.NewValidationError(fmt.Sprintf("Request already %s; only pending requests can be reviewed", req.Status))
		}

		now := time.Now().UTC()
		req.ReviewedByID = &in.ReviewerID
		req.ReviewedAt = &now
		req.ReviewNotes = in.Notes

		staged, err := documents.ListStaged(ctx, models.RequestKindAssessment, req.ID)
		if err != nil {
			return err
		}

		if !in.Approve {
			req.Status = models.RequestStatusRejected
			if err := documents.DeleteStagedByRequest(ctx, models.RequestKindAssessment, req.ID); err != nil {
				return err
			}
			discards = staged
			reviewed = req
			return requests.Save(ctx, req)
		}

		targetID, removedPaths, err := s.apply(ctx, tx, req)
		if err != nil {
			return err
		}
		orphans = removedPaths
		req.AssessmentID = &targetID

		if req.Action == models.RequestActionDelete {
			// Nothing left to own the files; staged uploads on a delete
			// request are dropped with the target.
			if err := documents.DeleteStagedByRequest(ctx, models.RequestKindAssessment, req.ID); err != nil {
				return err
			}
			discards = staged
		} else {
			for _, sd := range staged {
				doc, move := s.store.PlanPromotion(sd, models.OwnerTypeAssessment, targetID)
				if err := documents.CreateDocument(ctx, doc); err != nil {
					return err
				}
				if err := documents.DeleteStaged(ctx, sd.ID); err != nil {
					return err
				}
				moves = append(moves, move)
			}
		}

		req.Status = models.RequestStatusApproved
		reviewed = req
		return requests.Save(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.store.CompleteMoves(moves)
	for _, doc := range discards {
		s.store.Discard(doc)
	}
	for _, path := range orphans {
		s.store.Remove(path)
	}

	verdict := "rejected"
	if in.Approve {
		verdict = "approved"
	}
	observability.RequestsReviewed.WithLabelValues(models.RequestKindAssessment, verdict).Inc()
	observability.DocumentsPromoted.Add(float64(len(moves)))
	return reviewed, nil
}

// apply mutates the canonical assessment per the request action. Returns the
// resolved target id and, for deletes, the canonical file paths orphaned by
// the removal.
func (s *AssessmentRequestService) apply(ctx context.Context, tx *gorm.DB, req *models.AssessmentRequest) (uint, []string, error) {
	assessments := s.assessments.WithTx(tx)
	documents := s.documents.WithTx(tx)

	switch req.Action {
	case models.RequestActionCreate:
		exists, err := assessments.NameExists(ctx, req.Name, 0)
		if err != nil {
			return 0, nil, err
		}
		if exists {
			return 0, nil, models.NewConflictError("An assessment with this name already exists")
		}
		a := &models.Assessment{Name: req.Name, Description: req.Description, Methodology: req.Methodology}
		if err := assessments.Create(ctx, a); err != nil {
			return 0, nil, err
		}
		return a.ID, nil, nil

	case models.RequestActionUpdate:
		a, err := assessments.GetByID(ctx, *req.AssessmentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, models.NewNotFoundError("Assessment", *req.AssessmentID)
		}
		if err != nil {
			return 0, nil, err
		}
		if a.Name != req.Name {
			exists, err := assessments.NameExists(ctx, req.Name, a.ID)
			if err != nil {
				return 0, nil, err
			}
			if exists {
				return 0, nil, models.NewConflictError("An assessment with this name already exists")
			}
		}
		a.Name = req.Name
		a.Description = req.Description
		a.Methodology = req.Methodology
		if err := assessments.Update(ctx, a); err != nil {
			return 0, nil, err
		}
		return a.ID, nil, nil

	case models.RequestActionDelete:
		a, err := assessments.GetByID(ctx, *req.AssessmentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, models.NewNotFoundError("Assessment", *req.AssessmentID)
		}
		if err != nil {
			return 0, nil, err
		}
		count, err := assessments.SectionCount(ctx, a.ID)
		if err != nil {
			return 0, nil, err
		}
		if count > 0 {
			return 0, nil, models.NewValidationError("Assessment still has sub-sections; delete them first")
		}
		docs, err := documents.ListByOwner(ctx, models.OwnerTypeAssessment, a.ID)
		if err != nil {
			return 0, nil, err
		}
		var paths []string
		for _, d := range docs {
			paths = append(paths, d.Path)
		}
		if err := documents.DeleteByOwner(ctx, models.OwnerTypeAssessment, a.ID); err != nil {
			return 0, nil, err
		}
		if err := assessments.Delete(ctx, a.ID); err != nil {
			return 0, nil, err
		}
		return a.ID, paths, nil
	}
	return 0, nil, models.NewValidationError("Unknown request action")
}

// requireReviewer resolves the user and checks the reviewer role.
func requireReviewer(ctx context.Context, users repository.UserRepository, userID uint) error {
	u, err := users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewUnauthorizedError("Reviewer account not found")
	}
	if err != nil {
		return err
	}
	if !u.IsReviewer {
		return models.NewUnauthorizedError("Reviewer role required")
	}
	return nil
}

// sortedSlots gives uploads a stable staging order.
func sortedSlots(files map[string]models.UploadedFile) []string {
	slots := make([]string, 0, len(files))
	for slot := range files {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}
