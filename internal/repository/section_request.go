package repository

import (
	"context"

	"warelic/internal/cache"
	"warelic/internal/models"

	"gorm.io/gorm"
)

// SectionRequestRepository defines data operations on sub-section change
// requests. Name uniqueness for creates is scoped to the parent assessment.
type SectionRequestRepository interface {
	WithTx(tx *gorm.DB) SectionRequestRepository

	Create(ctx context.Context, req *models.SectionRequest) error
	Save(ctx context.Context, req *models.SectionRequest) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.SectionRequest, error)
	List(ctx context.Context, status models.RequestStatus, limit, offset int, search string) ([]*models.SectionRequest, int64, error)
	PendingExistsForTarget(ctx context.Context, sectionID uint) (bool, error)
	PendingExistsForName(ctx context.Context, assessmentID uint, name string) (bool, error)
}

type sectionRequestRepository struct {
	db *gorm.DB
}

// NewSectionRequestRepository creates a new section request repository.
func NewSectionRequestRepository(db *gorm.DB) SectionRequestRepository {
	return &sectionRequestRepository{db: db}
}

func (r *sectionRequestRepository) WithTx(tx *gorm.DB) SectionRequestRepository {
	return &sectionRequestRepository{db: tx}
}

func (r *sectionRequestRepository) Create(ctx context.Context, req *models.SectionRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *sectionRequestRepository) Save(ctx context.Context, req *models.SectionRequest) error {
	err := r.db.WithContext(ctx).Save(req).Error
	if err == nil {
		cache.InvalidateSectionRequest(ctx, req.ID)
	}
	return err
}

func (r *sectionRequestRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&models.SectionRequest{}, id).Error
	if err == nil {
		cache.InvalidateSectionRequest(ctx, id)
	}
	return err
}

func (r *sectionRequestRepository) GetByID(ctx context.Context, id uint) (*models.SectionRequest, error) {
	var req models.SectionRequest
	err := r.db.WithContext(ctx).
		Preload("RequestedByUser").
		Preload("ReviewedByUser").
		First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *sectionRequestRepository) List(ctx context.Context, status models.RequestStatus, limit, offset int, search string) ([]*models.SectionRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.SectionRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []*models.SectionRequest
	err := q.Preload("RequestedByUser").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, total, err
}

func (r *sectionRequestRepository) PendingExistsForTarget(ctx context.Context, sectionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SectionRequest{}).
		Where("section_id = ? AND status = ?", sectionID, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *sectionRequestRepository) PendingExistsForName(ctx context.Context, assessmentID uint, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SectionRequest{}).
		Where("assessment_id = ? AND name = ? AND section_id IS NULL AND status = ?",
			assessmentID, name, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}
