package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"warelic/internal/cache"
	"warelic/internal/models"
	"warelic/internal/observability"
	"warelic/internal/repository"
	"warelic/internal/storage"

	"gorm.io/gorm"
)

// SlotReport is the staged-document slot addressing the report itself;
// "item:<line>" slots address one proposed line item.
const SlotReport = "report"

const slotItemPrefix = "item:"

// ReportRequestService owns the lifecycle of inspection report change
// requests. The payload carries proposed line items; an approved update
// replaces the report's submissions wholesale.
type ReportRequestService struct {
	db        *gorm.DB
	requests  repository.ReportRequestRepository
	reports   repository.ReportRepository
	documents repository.DocumentRepository
	users     repository.UserRepository
	store     *storage.Store
}

// ReportItemInput is one proposed line item.
type ReportItemInput struct {
	LineNo int    `json:"line_no"`
	Item   string `json:"item"`
	Result string `json:"result"`
	Notes  string `json:"notes"`
}

// SubmitReportRequestInput carries one proposed report change.
type SubmitReportRequestInput struct {
	RequesterID uint
	Action      models.RequestAction
	ReportID    *uint
	Title       string
	Inspector   string
	InspectedAt time.Time
	Summary     string
	Items       []ReportItemInput
	Files       map[string]models.UploadedFile
}

// NewReportRequestService creates a new report request service.
func NewReportRequestService(
	db *gorm.DB,
	requests repository.ReportRequestRepository,
	reports repository.ReportRepository,
	documents repository.DocumentRepository,
	users repository.UserRepository,
	store *storage.Store,
) *ReportRequestService {
	return &ReportRequestService{
		db:        db,
		requests:  requests,
		reports:   reports,
		documents: documents,
		users:     users,
		store:     store,
	}
}

func validateItems(items []ReportItemInput) error {
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.LineNo <= 0 {
			return models.NewValidationError("Line numbers must be positive")
		}
		if _, dup := seen[it.LineNo]; dup {
			return models.NewValidationError(fmt.Sprintf("Duplicate line number %d", it.LineNo))
		}
		seen[it.LineNo] = struct{}{}
		if strings.TrimSpace(it.Item) == "" {
			return models.NewValidationError(fmt.Sprintf("Item is required on line %d", it.LineNo))
		}
		if strings.TrimSpace(it.Result) == "" {
			return models.NewValidationError(fmt.Sprintf("Result is required on line %d", it.LineNo))
		}
	}
	return nil
}

// validateSlots checks every upload addresses the report or a proposed line.
func validateSlots(files map[string]models.UploadedFile, items []ReportItemInput) error {
	lines := make(map[int]struct{}, len(items))
	for _, it := range items {
		lines[it.LineNo] = struct{}{}
	}
	for slot := range files {
		if slot == SlotReport {
			continue
		}
		rest, ok := strings.CutPrefix(slot, slotItemPrefix)
		if !ok {
			return models.NewValidationError(fmt.Sprintf("Unknown document slot %q", slot))
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return models.NewValidationError(fmt.Sprintf("Unknown document slot %q", slot))
		}
		if _, exists := lines[n]; !exists {
			return models.NewValidationError(fmt.Sprintf("Document slot %q does not match a proposed line item", slot))
		}
	}
	return nil
}

// Submit validates the proposal and its line items, runs the conflict guard
// and insert in one transaction, and stages uploads against report or item
// slots.
func (s *ReportRequestService) Submit(ctx context.Context, in SubmitReportRequestInput) (*models.ReportRequest, error) {
	if !models.ValidRequestAction(in.Action) {
		return nil, models.NewValidationError("Action must be one of create, update, delete")
	}
	switch in.Action {
	case models.RequestActionCreate:
		if in.ReportID != nil {
			return nil, models.NewValidationError("A create request must not reference an existing report")
		}
		if strings.TrimSpace(in.Title) == "" {
			return nil, models.NewValidationError("Title is required")
		}
	case models.RequestActionUpdate:
		if in.ReportID == nil {
			return nil, models.NewValidationError("An update request must reference a report")
		}
		if strings.TrimSpace(in.Title) == "" {
			return nil, models.NewValidationError("Title is required")
		}
	case models.RequestActionDelete:
		if in.ReportID == nil {
			return nil, models.NewValidationError("A delete request must reference a report")
		}
		if len(in.Items) > 0 {
			return nil, models.NewValidationError("A delete request must not carry line items")
		}
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	if err := validateSlots(in.Files, in.Items); err != nil {
		return nil, err
	}

	req := &models.ReportRequest{
		ReportID:      in.ReportID,
		Action:        in.Action,
		Title:         in.Title,
		Inspector:     in.Inspector,
		InspectedAt:   in.InspectedAt,
		Summary:       in.Summary,
		Status:        models.RequestStatusPending,
		RequestedByID: in.RequesterID,
	}
	for _, it := range in.Items {
		req.Items = append(req.Items, models.ReportRequestItem{
			LineNo: it.LineNo,
			Item:   it.Item,
			Result: it.Result,
			Notes:  it.Notes,
		})
	}

	var staged []*models.StagedDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		reports := s.reports.WithTx(tx)
		documents := s.documents.WithTx(tx)

		if in.ReportID != nil {
			target, err := reports.GetByID(ctx, *in.ReportID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Inspection report", *in.ReportID)
			}
			if err != nil {
				return err
			}
			pending, err := requests.PendingExistsForTarget(ctx, target.ID)
			if err != nil {
				return err
			}
			if pending {
				return models.NewConflictError("A pending request already exists for this report")
			}
			if err := req.SetOriginal(models.SnapshotOfReport(target)); err != nil {
				return err
			}
			if in.Action == models.RequestActionDelete {
				req.Title = target.Title
			}
		} else {
			pending, err := requests.PendingExistsForTitle(ctx, in.Title)
			if err != nil {
				return err
			}
			if pending {
				return models.NewConflictError("A pending create request already proposes this title")
			}
			exists, err := reports.TitleExists(ctx, in.Title, 0)
			if err != nil {
				return err
			}
			if exists {
				return models.NewConflictError("A report with this title already exists")
			}
		}

		if err := requests.Create(ctx, req); err != nil {
			return err
		}

		for _, slot := range sortedSlots(in.Files) {
			doc, err := s.store.Stage(ctx, models.RequestKindReport, req.ID, slot, in.Files[slot])
			if err != nil {
				return err
			}
			staged = append(staged, doc)
			if err := documents.CreateStaged(ctx, doc); err != nil {
				return err
			}
			observability.StagedBytes.WithLabelValues(models.RequestKindReport).Add(float64(doc.SizeBytes))
		}
		return nil
	})
	if err != nil {
		for _, doc := range staged {
			s.store.Discard(doc)
		}
		return nil, err
	}

	observability.RequestsSubmitted.WithLabelValues(models.RequestKindReport, string(in.Action)).Inc()
	return req, nil
}

// Get returns one request with its proposed items and staged document metadata.
func (s *ReportRequestService) Get(ctx context.Context, id uint) (*models.ReportRequest, []*models.StagedDocument, error) {
	var req models.ReportRequest
	err := cache.Aside(ctx, cache.ReportRequestKey(id), &req, cache.RequestTTL, func() error {
		got, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		req = *got
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, models.NewNotFoundError("Report request", id)
	}
	if err != nil {
		return nil, nil, err
	}

	staged, err := s.documents.ListStaged(ctx, models.RequestKindReport, id)
	if err != nil {
		return nil, nil, err
	}
	return &req, staged, nil
}

// List returns a page of requests plus the unpaged total.
func (s *ReportRequestService) List(ctx context.Context, in ListRequestsInput) ([]*models.ReportRequest, int64, error) {
	return s.requests.List(ctx, in.Status, in.Limit, in.Offset, in.Search)
}

// Delete withdraws a pending request.
func (s *ReportRequestService) Delete(ctx context.Context, id, requesterID uint) error {
	req, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Report request", id)
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

	staged, err := s.documents.ListStaged(ctx, models.RequestKindReport, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.documents.WithTx(tx).DeleteStagedByRequest(ctx, models.RequestKindReport, id); err != nil {
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

// Review records a terminal verdict. Approval applies the change and promotes
// staged documents: the "report" slot to the report, "item:<line>" slots to
// the submission row carrying that line number after the replacement.
func (s *ReportRequestService) Review(ctx context.Context, in ReviewInput) (*models.ReportRequest, error) {
	if err := requireReviewer(ctx, s.users, in.ReviewerID); err != nil {
		return nil, err
	}

	var (
		reviewed *models.ReportRequest
		moves    []storage.PendingMove
		discards []*models.StagedDocument
		orphans  []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		reports := s.reports.WithTx(tx)
		documents := s.documents.WithTx(tx)

		req, err := requests.GetByID(ctx, in.RequestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Report request", in.RequestID)
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

		staged, err := documents.ListStaged(ctx, models.RequestKindReport, req.ID)
		if err != nil {
			return err
		}

		if !in.Approve {
			req.Status = models.RequestStatusRejected
			if err := documents.DeleteStagedByRequest(ctx, models.RequestKindReport, req.ID); err != nil {
				return err
			}
			discards = staged
			reviewed = req
			return requests.Save(ctx, req)
		}

		reportID, removedPaths, err := s.apply(ctx, tx, req)
		if err != nil {
			return err
		}
		orphans = removedPaths
		req.ReportID = &reportID

		if req.Action == models.RequestActionDelete {
			if err := documents.DeleteStagedByRequest(ctx, models.RequestKindReport, req.ID); err != nil {
				return err
			}
			discards = staged
		} else {
			for _, sd := range staged {
				ownerType, ownerID, err := s.resolveOwner(ctx, reports, sd.Slot, reportID)
				if err != nil {
					return err
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
	observability.RequestsReviewed.WithLabelValues(models.RequestKindReport, verdict).Inc()
	observability.DocumentsPromoted.Add(float64(len(moves)))
	return reviewed, nil
}

// resolveOwner maps a staged slot to the canonical owner after apply: the
// report itself, or the submission row holding the slot's line number.
func (s *ReportRequestService) resolveOwner(ctx context.Context, reports repository.ReportRepository, slot string, reportID uint) (string, uint, error) {
	if slot == SlotReport {
		return models.OwnerTypeReport, reportID, nil
	}
	rest, ok := strings.CutPrefix(slot, slotItemPrefix)
	if !ok {
		return "", 0, models.NewValidationError(fmt.Sprintf("Unknown document slot %q", slot))
	}
	lineNo, err := strconv.Atoi(rest)
	if err != nil {
		return "", 0, models.NewValidationError(fmt.Sprintf("Unknown document slot %q", slot))
	}
	sub, err := reports.GetSubmissionByLine(ctx, reportID, lineNo)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", 0, models.NewValidationError(fmt.Sprintf("Document slot %q does not match an applied line item", slot))
	}
	if err != nil {
		return "", 0, err
	}
	return models.OwnerTypeSubmission, sub.ID, nil
}

func (s *ReportRequestService) apply(ctx context.Context, tx *gorm.DB, req *models.ReportRequest) (uint, []string, error) {
	reports := s.reports.WithTx(tx)
	documents := s.documents.WithTx(tx)

	toSubmissions := func() []models.Submission {
		subs := make([]models.Submission, 0, len(req.Items))
		for _, it := range req.Items {
			subs = append(subs, models.Submission{
				LineNo: it.LineNo,
				Item:   it.Item,
				Result: it.Result,
				Notes:  it.Notes,
			})
		}
		return subs
	}

	switch req.Action {
	case models.RequestActionCreate:
		exists, err := reports.TitleExists(ctx, req.Title, 0)
		if err != nil {
			return 0, nil, err
		}
		if exists {
			return 0, nil, models.NewConflictError("A report with this title already exists")
		}
		rep := &models.InspectionReport{
			Title:       req.Title,
			Inspector:   req.Inspector,
			InspectedAt: req.InspectedAt,
			Summary:     req.Summary,
		}
		if err := reports.Create(ctx, rep); err != nil {
			return 0, nil, err
		}
		if _, err := reports.ReplaceSubmissions(ctx, rep.ID, toSubmissions()); err != nil {
			return 0, nil, err
		}
		return rep.ID, nil, nil

	case models.RequestActionUpdate:
		rep, err := reports.GetByID(ctx, *req.ReportID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, models.NewNotFoundError("Inspection report", *req.ReportID)
		}
		if err != nil {
			return 0, nil, err
		}
		if rep.Title != req.Title {
			exists, err := reports.TitleExists(ctx, req.Title, rep.ID)
			if err != nil {
				return 0, nil, err
			}
			if exists {
				return 0, nil, models.NewConflictError("A report with this title already exists")
			}
		}
		// Replaced submissions get fresh ids, so their old documents would
		// dangle; drop the rows and files with the replacement.
		paths, err := s.dropSubmissionDocuments(ctx, documents, rep)
		if err != nil {
			return 0, nil, err
		}
		rep.Title = req.Title
		rep.Inspector = req.Inspector
		rep.InspectedAt = req.InspectedAt
		rep.Summary = req.Summary
		if err := reports.Update(ctx, rep); err != nil {
			return 0, nil, err
		}
		if _, err := reports.ReplaceSubmissions(ctx, rep.ID, toSubmissions()); err != nil {
			return 0, nil, err
		}
		return rep.ID, paths, nil

	case models.RequestActionDelete:
		rep, err := reports.GetByID(ctx, *req.ReportID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, models.NewNotFoundError("Inspection report", *req.ReportID)
		}
		if err != nil {
			return 0, nil, err
		}
		count, err := reports.SubmissionCount(ctx, rep.ID)
		if err != nil {
			return 0, nil, err
		}
		if count > 0 {
			return 0, nil, models.NewValidationError("Report still has line-item submissions; remove them first")
		}
		reportDocs, err := documents.ListByOwner(ctx, models.OwnerTypeReport, rep.ID)
		if err != nil {
			return 0, nil, err
		}
		var paths []string
		for _, d := range reportDocs {
			paths = append(paths, d.Path)
		}
		if err := documents.DeleteByOwner(ctx, models.OwnerTypeReport, rep.ID); err != nil {
			return 0, nil, err
		}
		if err := reports.Delete(ctx, rep.ID); err != nil {
			return 0, nil, err
		}
		return rep.ID, paths, nil
	}
	return 0, nil, models.NewValidationError("Unknown request action")
}

func (s *ReportRequestService) dropSubmissionDocuments(ctx context.Context, documents repository.DocumentRepository, rep *models.InspectionReport) ([]string, error) {
	var paths []string
	for _, sub := range rep.Submissions {
		docs, err := documents.ListByOwner(ctx, models.OwnerTypeSubmission, sub.ID)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			paths = append(paths, d.Path)
		}
		if err := documents.DeleteByOwner(ctx, models.OwnerTypeSubmission, sub.ID); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
