package repository

import (
	"context"
	"time"

	"warelic/internal/models"

	"gorm.io/gorm"
)

// ChecklistRepository defines data operations on warehouse locations, their
// checklist sections, and the append-only section history tables.
type ChecklistRepository interface {
	WithTx(tx *gorm.DB) ChecklistRepository

	CreateLocation(ctx context.Context, loc *models.WarehouseLocation) error
	GetLocation(ctx context.Context, id uint) (*models.WarehouseLocation, error)
	GetLocationByCode(ctx context.Context, code string) (*models.WarehouseLocation, error)
	ListLocations(ctx context.Context, limit, offset int, search string) ([]*models.WarehouseLocation, int64, error)

	FireSections(ctx context.Context, locationID uint) ([]*models.FireSafetySection, error)
	GetFireSection(ctx context.Context, locationID uint, code string) (*models.FireSafetySection, error)
	SaveFireSection(ctx context.Context, s *models.FireSafetySection) error
	ArchiveFireSection(ctx context.Context, s *models.FireSafetySection) error
	FireHistory(ctx context.Context, sectionID uint) ([]*models.FireSafetySectionHistory, error)
	RejectedFireSectionIDs(ctx context.Context, locationID uint) ([]uint, error)

	StorageSections(ctx context.Context, locationID uint) ([]*models.StorageConditionSection, error)
	GetStorageSection(ctx context.Context, locationID uint, code string) (*models.StorageConditionSection, error)
	SaveStorageSection(ctx context.Context, s *models.StorageConditionSection) error
	ArchiveStorageSection(ctx context.Context, s *models.StorageConditionSection) error
	StorageHistory(ctx context.Context, sectionID uint) ([]*models.StorageConditionSectionHistory, error)
	RejectedStorageSectionIDs(ctx context.Context, locationID uint) ([]uint, error)
}

type checklistRepository struct {
	db *gorm.DB
}

// NewChecklistRepository creates a new checklist repository.
func NewChecklistRepository(db *gorm.DB) ChecklistRepository {
	return &checklistRepository{db: db}
}

func (r *checklistRepository) WithTx(tx *gorm.DB) ChecklistRepository {
	return &checklistRepository{db: tx}
}

func (r *checklistRepository) CreateLocation(ctx context.Context, loc *models.WarehouseLocation) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

func (r *checklistRepository) GetLocation(ctx context.Context, id uint) (*models.WarehouseLocation, error) {
	var loc models.WarehouseLocation
	if err := r.db.WithContext(ctx).First(&loc, id).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *checklistRepository) GetLocationByCode(ctx context.Context, code string) (*models.WarehouseLocation, error) {
	var loc models.WarehouseLocation
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *checklistRepository) ListLocations(ctx context.Context, limit, offset int, search string) ([]*models.WarehouseLocation, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.WarehouseLocation{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("code LIKE ? OR operator_name LIKE ? OR address LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var locs []*models.WarehouseLocation
	err := q.Order("code ASC").Limit(limit).Offset(offset).Find(&locs).Error
	return locs, total, err
}

func (r *checklistRepository) FireSections(ctx context.Context, locationID uint) ([]*models.FireSafetySection, error) {
	var sections []*models.FireSafetySection
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("code ASC").
		Find(&sections).Error
	return sections, err
}

func (r *checklistRepository) GetFireSection(ctx context.Context, locationID uint, code string) (*models.FireSafetySection, error) {
	var s models.FireSafetySection
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND code = ?", locationID, code).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *checklistRepository) SaveFireSection(ctx context.Context, s *models.FireSafetySection) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// ArchiveFireSection copies the section's current row into the history table.
// Always an insert; history rows are never updated or deleted.
func (r *checklistRepository) ArchiveFireSection(ctx context.Context, s *models.FireSafetySection) error {
	hist := models.FireSafetySectionHistory{
		SectionID:    s.ID,
		LocationID:   s.LocationID,
		Code:         s.Code,
		Findings:     s.Findings,
		Compliant:    s.Compliant,
		ReviewStatus: s.ReviewStatus,
		ReviewNotes:  s.ReviewNotes,
		ArchivedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&hist).Error
}

func (r *checklistRepository) FireHistory(ctx context.Context, sectionID uint) ([]*models.FireSafetySectionHistory, error) {
	var hist []*models.FireSafetySectionHistory
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("archived_at ASC").
		Find(&hist).Error
	return hist, err
}

func (r *checklistRepository) RejectedFireSectionIDs(ctx context.Context, locationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.FireSafetySection{}).
		Where("location_id = ? AND review_status = ?", locationID, models.SectionReviewRejected).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *checklistRepository) StorageSections(ctx context.Context, locationID uint) ([]*models.StorageConditionSection, error) {
	var sections []*models.StorageConditionSection
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("code ASC").
		Find(&sections).Error
	return sections, err
}

func (r *checklistRepository) GetStorageSection(ctx context.Context, locationID uint, code string) (*models.StorageConditionSection, error) {
	var s models.StorageConditionSection
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND code = ?", locationID, code).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *checklistRepository) SaveStorageSection(ctx context.Context, s *models.StorageConditionSection) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// ArchiveStorageSection copies the section's current row into the history table.
func (r *checklistRepository) ArchiveStorageSection(ctx context.Context, s *models.StorageConditionSection) error {
	hist := models.StorageConditionSectionHistory{
		SectionID:    s.ID,
		LocationID:   s.LocationID,
		Code:         s.Code,
		TemperatureC: s.TemperatureC,
		HumidityPct:  s.HumidityPct,
		Condition:    s.Condition,
		ReviewStatus: s.ReviewStatus,
		ReviewNotes:  s.ReviewNotes,
		ArchivedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&hist).Error
}

func (r *checklistRepository) StorageHistory(ctx context.Context, sectionID uint) ([]*models.StorageConditionSectionHistory, error) {
	var hist []*models.StorageConditionSectionHistory
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("archived_at ASC").
		Find(&hist).Error
	return hist, err
}

func (r *checklistRepository) RejectedStorageSectionIDs(ctx context.Context, locationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.StorageConditionSection{}).
		Where("location_id = ? AND review_status = ?", locationID, models.SectionReviewRejected).
		Pluck("id", &ids).Error
	return ids, err
}
