package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warelic/internal/cache"
	"warelic/internal/models"
	"warelic/internal/observability"
	"warelic/internal/repository"
	"warelic/internal/storage"

	"gorm.io/gorm"
)

// SlotParentAssessment is the staged-document slot that promotes to the
// request's parent assessment instead of the sub-section itself.
const SlotParentAssessment = "assessment"

// SectionRequestService owns the lifecycle of sub-section change requests.
// Every request carries its parent assessment scope; create-name uniqueness is
// checked inside that scope only.
type SectionRequestService struct {
	db          *gorm.DB
	requests    repository.SectionRequestRepository
	assessments repository.AssessmentRepository
	documents   repository.DocumentRepository
	users       repository.UserRepository
	store       *storage.Store
}

// SubmitSectionRequestInput carries one proposed sub-section change.
type SubmitSectionRequestInput struct {
	RequesterID  uint
	Action       models.RequestAction
	AssessmentID uint
	SectionID    *uint
	Name         string
	Content      string
	Weight       int
	Files        map[string]models.UploadedFile
}

// NewSectionRequestService creates a new section request service.
func NewSectionRequestService(
	db *gorm.DB,
	requests repository.SectionRequestRepository,
	assessments repository.AssessmentRepository,
	documents repository.DocumentRepository,
	users repository.UserRepository,
	store *storage.Store,
) *SectionRequestService {
	return &SectionRequestService{
		db:          db,
		requests:    requests,
		assessments: assessments,
		documents:   documents,
		users:       users,
		store:       store,
	}
}

// Submit validates the proposal against its parent assessment, runs the
// scoped conflict guard and the insert in one transaction, and stages uploads.
func (s *SectionRequestService) Submit(ctx context.Context, in SubmitSectionRequestInput) (*models.SectionRequest, error) {
	if !models.ValidRequestAction(in.Action) {
		return nil, models.NewValidationError("Action must be one of create, update, delete")
	}
	if in.AssessmentID == 0 {
		return nil, models.NewValidationError("A section request must name its parent assessment")
	}
	switch in.Action {
	case models.RequestActionCreate:
		if in.SectionID != nil {
			return nil, models.NewValidationError("A create request must not reference an existing section")
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, models.NewValidationError("Name is required")
		}
	case models.RequestActionUpdate:
		if in.SectionID == nil {
			return nil, models.NewValidationError("An update request must reference a section")
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, models.NewValidationError("Name is required")
		}
	case models.RequestActionDelete:
		if in.SectionID == nil {
			return nil, models.NewValidationError("A delete request must reference a section")
		}
	}

	req := &models.SectionRequest{
		AssessmentID:  in.AssessmentID,
		SectionID:     in.SectionID,
		Action:        in.Action,
		Name:          in.Name,
		Content:       in.Content,
		Weight:        in.Weight,
		Status:        models.RequestStatusPending,
		RequestedByID: in.RequesterID,
	}

	var staged []*models.StagedDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		assessments := s.assessments.WithTx(tx)
		documents := s.documents.WithTx(tx)

		if _, err := assessments.GetByID(ctx, in.AssessmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Assessment", in.AssessmentID)
			}
			return err
		}

		if in.SectionID != nil {
			target, err := assessments.GetSection(ctx, *in.SectionID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Sub-section", *in.SectionID)
			}
			if err != nil {
				return err
			}
			if target.AssessmentID != in.AssessmentID {
				return models.NewValidationError("Section does not belong to the given assessment")
			}
			pending, err := requests.PendingExistsForTarget(ctx, target.ID)
			if err != nil {
				return err
			}
			if pending {
				return models.NewConflictError("A pending request already exists for this section")
			}
			if err := req.SetOriginal(models.SnapshotOfSection(target)); err != nil {
				return err
			}
			if in.Action == models.RequestActionDelete {
				req.Name = target.Name
			}
		} else {
			pending, err := requests.PendingExistsForName(ctx, in.AssessmentID, in.Name)
			if err != nil {
				return err
			}
			if pending {
				return models.NewConflictError("A pending create request already proposes this section name")
			}
			exists, err := assessments.SectionNameExists(ctx, in.AssessmentID, in.Name, 0)
			if err != nil {
				return err
			}
			if exists {
				return models.NewConflictError("A section with this name already exists in the assessment")
			}
		}

		if err := requests.Create(ctx, req); err != nil {
			return err
		}

		for _, slot := range sortedSlots(in.Files) {
			doc, err := s.store.Stage(ctx, models.RequestKindSection, req.ID, slot, in.Files[slot])
			if err != nil {
				return err
			}
			staged = append(staged, doc)
			if err := documents.CreateStaged(ctx, doc); err != nil {
				return err
			}
			observability.StagedBytes.WithLabelValues(models.RequestKindSection).Add(float64(doc.SizeBytes))
		}
		return nil
	})
	if err != nil {
		for _, doc := range staged {
			s.store.Discard(doc)
		}
		return nil, err
	}

	observability.RequestsSubmitted.WithLabelValues(models.RequestKindSection, string(in.Action)).Inc()
	return req, nil
}

// Get returns one request with its staged document metadata.
func (s *SectionRequestService) Get(ctx context.Context, id uint) (*models.SectionRequest, []*models.StagedDocument, error) {
	var req models.SectionRequest
	err := cache.Aside(ctx, cache.SectionRequestKey(id), &req, cache.RequestTTL, func() error {
		got, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		req = *got
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, models.NewNotFoundError("Section request", id)
	}
	if err != nil {
		return nil, nil, err
	}

	staged, err := s.documents.ListStaged(ctx, models.RequestKindSection, id)
	if err != nil {
		return nil, nil, err
	}
	return &req, staged, nil
}

// List returns a page of requests plus the unpaged total.
func (s *SectionRequestService) List(ctx context.Context, in ListRequestsInput) ([]*models.SectionRequest, int64, error) {
	return s.requests.List(ctx, in.Status, in.Limit, in.Offset, in.Search)
}

// Delete withdraws a pending request.
func (s *SectionRequestService) Delete(ctx context.Context, id, requesterID uint) error {
	req, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Section request", id)
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

	staged, err := s.documents.ListStaged(ctx, models.RequestKindSection, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.documents.WithTx(tx).DeleteStagedByRequest(ctx, models.RequestKindSection, id); err != nil {
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

// Review records a terminal verdict; see AssessmentRequestService.Review for
// the transactional shape. Staged documents in the "assessment" slot promote
// to the parent assessment rather than the section.
func (s *SectionRequestService) Review(ctx context.Context, in ReviewInput) (*models.SectionRequest, error) {
	if err := requireReviewer(ctx, s.users, in.ReviewerID); err != nil {
		return nil, err
	}

	var (
		reviewed *models.SectionRequest
		moves    []storage.PendingMove
		discards []*models.StagedDocument
		orphans  []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		documents := s.documents.WithTx(tx)

		req, err := requests.GetByID(ctx, in.RequestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Section request", in.RequestID)
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

		staged, err := documents.ListStaged(ctx, models.RequestKindSection, req.ID)
		if err != nil {
			return err
		}

		if !in.Approve {
			req.Status = models.RequestStatusRejected
			if err := documents.DeleteStagedByRequest(ctx, models.RequestKindSection, req.ID); err != nil {
				return err
			}
			discards = staged
			reviewed = req
			return requests.Save(ctx, req)
		}

		sectionID, removedPaths, err := s.apply(ctx, tx, req)
		if err != nil {
			return err
		}
		orphans = removedPaths
		req.SectionID = &sectionID

		if req.Action == models.RequestActionDelete {
			if err := documents.DeleteStagedByRequest(ctx, models.RequestKindSection, req.ID); err != nil {
				return err
			}
			discards = staged
		} else {
			for _, sd := range staged {
				ownerType, ownerID := models.OwnerTypeSubSection, sectionID
				if sd.Slot == SlotParentAssessment {
					ownerType, ownerID = models.OwnerTypeAssessment, req.AssessmentID
				}
				doc, move := s.store.PlanPromotion(sd, ownerType, ownerID)
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
	observability.RequestsReviewed.WithLabelValues(models.RequestKindSection, verdict).Inc()
	observability.DocumentsPromoted.Add(float64(len(moves)))
	return reviewed, nil
}

func (s *SectionRequestService) apply(ctx context.Context, tx *gorm.DB, req *models.SectionRequest) (uint, []string, error) {
	assessments := s.assessments.WithTx(tx)
	documents := s.documents.WithTx(tx)

	switch req.Action {
	case models.RequestActionCreate:
		exists, err := assessments.SectionNameExists(ctx, req.AssessmentID, req.Name, 0)
		if err != nil {
			return 0, nil, err
		}
		if exists {
			return 0, nil, models.NewConflictError("A section with this name already exists in the assessment")
		}
		sec := &models.SubSection{
			AssessmentID: req.AssessmentID,
			Name:         req.Name,
			Content:      req.Content,
			Weight:       req.Weight,
		}
		if err := assessments.CreateSection(ctx, sec); err != nil {
			return 0, nil, err
		}
		return sec.ID, nil, nil

	case models.RequestActionUpdate:
		sec, err := assessments.GetSection(ctx, *req.SectionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, models.NewNotFoundError("Sub-section", *req.SectionID)
		}
		if err != nil {
			return 0, nil, err
		}
		if sec.Name != req.Name {
			exists, err := assessments.SectionNameExists(ctx, req.AssessmentID, req.Name, sec.ID)
			if err != nil {
				return 0, nil, err
			}
			if exists {
				return 0, nil, models.NewConflictError("A section with this name already exists in the assessment")
			}
		}
		sec.Name = req.Name
		sec.Content = req.Content
		sec.Weight = req.Weight
		if err := assessments.UpdateSection(ctx, sec); err != nil {
			return 0, nil, err
		}
		return sec.ID, nil, nil

	case models.RequestActionDelete:
		sec, err := assessments.GetSection(ctx, *req.SectionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, models.NewNotFoundError("Sub-section", *req.SectionID)
		}
		if err != nil {
			return 0, nil, err
		}
		docs, err := documents.ListByOwner(ctx, models.OwnerTypeSubSection, sec.ID)
		if err != nil {
			return 0, nil, err
		}
		var paths []string
		for _, d := range docs {
			paths = append(paths, d.Path)
		}
		if err := documents.DeleteByOwner(ctx, models.OwnerTypeSubSection, sec.ID); err != nil {
			return 0, nil, err
		}
		if err := assessments.DeleteSection(ctx, sec.ID); err != nil {
			return 0, nil, err
		}
		return sec.ID, paths, nil
	}
	return 0, nil, models.NewValidationError("Unknown request action")
}
