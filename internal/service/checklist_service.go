package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"warelic/internal/cache"
	"warelic/internal/models"
	"warelic/internal/observability"
	"warelic/internal/repository"
	"warelic/internal/storage"

	"gorm.io/gorm"
)

// Checklist document slots are "fire:<code>" and "storage:<code>".
const (
	slotFirePrefix    = "fire:"
	slotStoragePrefix = "storage:"
)

// RejectedSectionSource reports which checklist sections a reviewer rejected.
// The routing collaborator that assigns reviewers lives outside this service;
// the default source reads the verdicts recorded on the section rows.
type RejectedSectionSource interface {
	RejectedFireSections(ctx context.Context, locationID uint) ([]uint, error)
	RejectedStorageSections(ctx context.Context, locationID uint) ([]uint, error)
}

type dbRejectedSource struct {
	repo repository.ChecklistRepository
}

// NewDBRejectedSource builds the default source backed by the section rows.
func NewDBRejectedSource(repo repository.ChecklistRepository) RejectedSectionSource {
	return &dbRejectedSource{repo: repo}
}

func (s *dbRejectedSource) RejectedFireSections(ctx context.Context, locationID uint) ([]uint, error) {
	return s.repo.RejectedFireSectionIDs(ctx, locationID)
}

func (s *dbRejectedSource) RejectedStorageSections(ctx context.Context, locationID uint) ([]uint, error) {
	return s.repo.RejectedStorageSectionIDs(ctx, locationID)
}

// ChecklistService owns warehouse locations and the resubmission loop: fill in
// sections, have them reviewed, archive and overwrite rejected ones, repeat
// until everything passes.
type ChecklistService struct {
	db         *gorm.DB
	checklists repository.ChecklistRepository
	documents  repository.DocumentRepository
	users      repository.UserRepository
	store      *storage.Store
	rejected   RejectedSectionSource
}

// NewChecklistService creates a new checklist service. A nil source falls back
// to the section rows' recorded verdicts.
func NewChecklistService(
	db *gorm.DB,
	checklists repository.ChecklistRepository,
	documents repository.DocumentRepository,
	users repository.UserRepository,
	store *storage.Store,
	rejected RejectedSectionSource,
) *ChecklistService {
	if rejected == nil {
		rejected = NewDBRejectedSource(checklists)
	}
	return &ChecklistService{
		db:         db,
		checklists: checklists,
		documents:  documents,
		users:      users,
		store:      store,
		rejected:   rejected,
	}
}

// ChecklistView is the read model for one location's checklist.
type ChecklistView struct {
	Location        *models.WarehouseLocation         `json:"location"`
	FireSections    []*models.FireSafetySection       `json:"fire_sections"`
	StorageSections []*models.StorageConditionSection `json:"storage_sections"`
}

// CreateLocationInput carries a new warehouse location.
type CreateLocationInput struct {
	Code         string `json:"code"`
	Address      string `json:"address"`
	OperatorName string `json:"operator_name"`
}

// FireSectionInput is one submitted fire-safety section.
type FireSectionInput struct {
	Code      string `json:"code"`
	Findings  string `json:"findings"`
	Compliant bool   `json:"compliant"`
}

// StorageSectionInput is one submitted storage-condition section.
type StorageSectionInput struct {
	Code         string  `json:"code"`
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	Condition    string  `json:"condition"`
}

// ResubmitInput carries one checklist (re)submission for a location.
type ResubmitInput struct {
	LocationID uint
	Fire       []FireSectionInput
	Storage    []StorageSectionInput
	Files      map[string]models.UploadedFile
}

// ReviewSectionInput carries one reviewer verdict on a checklist section.
type ReviewSectionInput struct {
	LocationID  uint
	ReviewerID  uint
	SectionType string // "fire" or "storage"
	Code        string
	Accept      bool
	Notes       string
}

// CreateLocation registers a warehouse location. Codes are globally unique.
func (s *ChecklistService) CreateLocation(ctx context.Context, in CreateLocationInput) (*models.WarehouseLocation, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, models.NewValidationError("Code is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, models.NewValidationError("Address is required")
	}
	if strings.TrimSpace(in.OperatorName) == "" {
		return nil, models.NewValidationError("Operator name is required")
	}

	if _, err := s.checklists.GetLocationByCode(ctx, in.Code); err == nil {
		return nil, models.NewConflictError("A location with this code already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	loc := &models.WarehouseLocation{
		Code:         in.Code,
		Address:      in.Address,
		OperatorName: in.OperatorName,
	}
	if err := s.checklists.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// ListLocations returns a page of locations plus the unpaged total.
func (s *ChecklistService) ListLocations(ctx context.Context, limit, offset int, search string) ([]*models.WarehouseLocation, int64, error) {
	return s.checklists.ListLocations(ctx, limit, offset, search)
}

// GetChecklist returns the location with both section lists.
func (s *ChecklistService) GetChecklist(ctx context.Context, locationID uint) (*ChecklistView, error) {
	var view ChecklistView
	err := cache.Aside(ctx, cache.ChecklistKey(locationID), &view, cache.ChecklistTTL, func() error {
		loc, err := s.checklists.GetLocation(ctx, locationID)
		if err != nil {
			return err
		}
		fire, err := s.checklists.FireSections(ctx, locationID)
		if err != nil {
			return err
		}
		stor, err := s.checklists.StorageSections(ctx, locationID)
		if err != nil {
			return err
		}
		view = ChecklistView{Location: loc, FireSections: fire, StorageSections: stor}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Warehouse location", locationID)
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Resubmit overwrites the submitted sections. A section the reviewer rejected
// is archived to its history table first, all fields plus parent linkage and
// timestamp; sections that were never rejected overwrite in place with no
// snapshot. Every submitted section returns to pending review. Attached files
// go through the same staging and vault path as request documents and replace
// the section's previous document in the same slot.
func (s *ChecklistService) Resubmit(ctx context.Context, in ResubmitInput) (*ChecklistView, error) {
	if len(in.Fire) == 0 && len(in.Storage) == 0 {
		return nil, models.NewValidationError("A resubmission must carry at least one section")
	}
	if err := s.validateChecklistSlots(in); err != nil {
		return nil, err
	}

	if _, err := s.checklists.GetLocation(ctx, in.LocationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Warehouse location", in.LocationID)
		}
		return nil, err
	}

	rejectedFire, err := s.rejected.RejectedFireSections(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}
	rejectedStorage, err := s.rejected.RejectedStorageSections(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}

	var (
		staged []*models.StagedDocument
		moves  []storage.PendingMove
		stale  []string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		checklists := s.checklists.WithTx(tx)
		documents := s.documents.WithTx(tx)

		owners := make(map[string]struct {
			ownerType string
			ownerID   uint
		})

		for _, fin := range in.Fire {
			sec, err := s.applyFireSection(ctx, checklists, in.LocationID, fin, asSet(rejectedFire))
			if err != nil {
				return err
			}
			owners[slotFirePrefix+fin.Code] = struct {
				ownerType string
				ownerID   uint
			}{models.OwnerTypeFireSection, sec.ID}
		}
		for _, sin := range in.Storage {
			sec, err := s.applyStorageSection(ctx, checklists, in.LocationID, sin, asSet(rejectedStorage))
			if err != nil {
				return err
			}
			owners[slotStoragePrefix+sin.Code] = struct {
				ownerType string
				ownerID   uint
			}{models.OwnerTypeStorageSection, sec.ID}
		}

		// Checklist files carry no approval gate of their own; the section
		// review covers them. Stage, then promote within this transaction.
		for _, slot := range sortedSlots(in.Files) {
			owner := owners[slot]
			doc, err := s.store.Stage(ctx, models.RequestKindChecklist, in.LocationID, slot, in.Files[slot])
			if err != nil {
				return err
			}
			staged = append(staged, doc)
			observability.StagedBytes.WithLabelValues(models.RequestKindChecklist).Add(float64(doc.SizeBytes))

			if prev, err := documents.GetByOwnerSlot(ctx, owner.ownerType, owner.ownerID, slot); err == nil {
				stale = append(stale, prev.Path)
				if err := documents.DeleteDocument(ctx, prev.ID); err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			canonical, move := s.store.PlanPromotion(doc, owner.ownerType, owner.ownerID)
			if err := documents.CreateDocument(ctx, canonical); err != nil {
				return err
			}
			moves = append(moves, move)
		}
		return nil
	})
	if err != nil {
		for _, doc := range staged {
			s.store.Discard(doc)
		}
		return nil, err
	}

	s.store.CompleteMoves(moves)
	for _, path := range stale {
		s.store.Remove(path)
	}
	observability.DocumentsPromoted.Add(float64(len(moves)))
	cache.InvalidateChecklist(ctx, in.LocationID)

	return s.GetChecklist(ctx, in.LocationID)
}

func (s *ChecklistService) applyFireSection(ctx context.Context, checklists repository.ChecklistRepository, locationID uint, in FireSectionInput, rejected map[uint]struct{}) (*models.FireSafetySection, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, models.NewValidationError("Section code is required")
	}

	sec, err := checklists.GetFireSection(ctx, locationID, in.Code)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sec = &models.FireSafetySection{LocationID: locationID, Code: in.Code}
	case err != nil:
		return nil, err
	default:
		if _, wasRejected := rejected[sec.ID]; wasRejected {
			if err := checklists.ArchiveFireSection(ctx, sec); err != nil {
				return nil, err
			}
			observability.SectionsArchived.WithLabelValues("fire_safety").Inc()
		}
	}

	sec.Findings = in.Findings
	sec.Compliant = in.Compliant
	sec.ReviewStatus = models.SectionReviewPending
	sec.ReviewNotes = ""
	if err := checklists.SaveFireSection(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

func (s *ChecklistService) applyStorageSection(ctx context.Context, checklists repository.ChecklistRepository, locationID uint, in StorageSectionInput, rejected map[uint]struct{}) (*models.StorageConditionSection, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, models.NewValidationError("Section code is required")
	}

	sec, err := checklists.GetStorageSection(ctx, locationID, in.Code)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sec = &models.StorageConditionSection{LocationID: locationID, Code: in.Code}
	case err != nil:
		return nil, err
	default:
		if _, wasRejected := rejected[sec.ID]; wasRejected {
			if err := checklists.ArchiveStorageSection(ctx, sec); err != nil {
				return nil, err
			}
			observability.SectionsArchived.WithLabelValues("storage_condition").Inc()
		}
	}

	sec.TemperatureC = in.TemperatureC
	sec.HumidityPct = in.HumidityPct
	sec.Condition = in.Condition
	sec.ReviewStatus = models.SectionReviewPending
	sec.ReviewNotes = ""
	if err := checklists.SaveStorageSection(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// validateChecklistSlots checks every upload addresses a submitted section.
func (s *ChecklistService) validateChecklistSlots(in ResubmitInput) error {
	submitted := make(map[string]struct{}, len(in.Fire)+len(in.Storage))
	for _, f := range in.Fire {
		submitted[slotFirePrefix+f.Code] = struct{}{}
	}
	for _, st := range in.Storage {
		submitted[slotStoragePrefix+st.Code] = struct{}{}
	}
	for slot := range in.Files {
		if _, ok := submitted[slot]; !ok {
			return models.NewValidationError(fmt.Sprintf("Document slot %q does not match a submitted section", slot))
		}
	}
	return nil
}

// ReviewSection records a reviewer verdict on one pending section.
func (s *ChecklistService) ReviewSection(ctx context.Context, in ReviewSectionInput) error {
	if err := requireReviewer(ctx, s.users, in.ReviewerID); err != nil {
		return err
	}

	status := models.SectionReviewRejected
	if in.Accept {
		status = models.SectionReviewAccepted
	}

	switch in.SectionType {
	case "fire":
		sec, err := s.checklists.GetFireSection(ctx, in.LocationID, in.Code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Fire safety section", in.Code)
		}
		if err != nil {
			return err
		}
		if sec.ReviewStatus != models.SectionReviewPending {
			return models.NewValidationError("Only pending sections can be reviewed")
		}
		sec.ReviewStatus = status
		sec.ReviewNotes = in.Notes
		if err := s.checklists.SaveFireSection(ctx, sec); err != nil {
			return err
		}
	case "storage":
		sec, err := s.checklists.GetStorageSection(ctx, in.LocationID, in.Code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Storage condition section", in.Code)
		}
		if err != nil {
			return err
		}
		if sec.ReviewStatus != models.SectionReviewPending {
			return models.NewValidationError("Only pending sections can be reviewed")
		}
		sec.ReviewStatus = status
		sec.ReviewNotes = in.Notes
		if err := s.checklists.SaveStorageSection(ctx, sec); err != nil {
			return err
		}
	default:
		return models.NewValidationError("Section type must be fire or storage")
	}

	cache.InvalidateChecklist(ctx, in.LocationID)
	return nil
}

// SectionHistory returns the archived snapshots for one section.
func (s *ChecklistService) SectionHistory(ctx context.Context, locationID uint, sectionType, code string) (any, error) {
	switch sectionType {
	case "fire":
		sec, err := s.checklists.GetFireSection(ctx, locationID, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Fire safety section", code)
		}
		if err != nil {
			return nil, err
		}
		return s.checklists.FireHistory(ctx, sec.ID)
	case "storage":
		sec, err := s.checklists.GetStorageSection(ctx, locationID, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Storage condition section", code)
		}
		if err != nil {
			return nil, err
		}
		return s.checklists.StorageHistory(ctx, sec.ID)
	default:
		return nil, models.NewValidationError("Section type must be fire or storage")
	}
}

func asSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
