package repository

import (
	"context"

	"warelic/internal/cache"
	"warelic/internal/models"

	"gorm.io/gorm"
)

// AssessmentRequestRepository defines data operations on assessment change
// requests. The PendingExists* queries are the in-transaction half of the
// conflict guard; the partial unique indexes close the race behind them.
type AssessmentRequestRepository interface {
	WithTx(tx *gorm.DB) AssessmentRequestRepository

	Create(ctx context.Context, req *models.AssessmentRequest) error
	Save(ctx context.Context, req *models.AssessmentRequest) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.AssessmentRequest, error)
	List(ctx context.Context, status models.RequestStatus, limit, offset int, search string) ([]*models.AssessmentRequest, int64, error)
	PendingExistsForTarget(ctx context.Context, assessmentID uint) (bool, error)
	PendingExistsForName(ctx context.Context, name string) (bool, error)
}

type assessmentRequestRepository struct {
	db *gorm.DB
}

// NewAssessmentRequestRepository creates a new assessment request repository.
func NewAssessmentRequestRepository(db *gorm.DB) AssessmentRequestRepository {
	return &assessmentRequestRepository{db: db}
}

func (r *assessmentRequestRepository) WithTx(tx *gorm.DB) AssessmentRequestRepository {
	return &assessmentRequestRepository{db: tx}
}

func (r *assessmentRequestRepository) Create(ctx context.Context, req *models.AssessmentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *assessmentRequestRepository) Save(ctx context.Context, req *models.AssessmentRequest) error {
	err := r.db.WithContext(ctx).Save(req).Error
	if err == nil {
		cache.InvalidateAssessmentRequest(ctx, req.ID)
	}
	return err
}

func (r *assessmentRequestRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&models.AssessmentRequest{}, id).Error
	if err == nil {
		cache.InvalidateAssessmentRequest(ctx, id)
	}
	return err
}

func (r *assessmentRequestRepository) GetByID(ctx context.Context, id uint) (*models.AssessmentRequest, error) {
	var req models.AssessmentRequest
	err := r.db.WithContext(ctx).
		Preload("RequestedByUser").
		Preload("ReviewedByUser").
		First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *assessmentRequestRepository) List(ctx context.Context, status models.RequestStatus, limit, offset int, search string) ([]*models.AssessmentRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AssessmentRequest{})
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

	var reqs []*models.AssessmentRequest
	err := q.Preload("RequestedByUser").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, total, err
}

func (r *assessmentRequestRepository) PendingExistsForTarget(ctx context.Context, assessmentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssessmentRequest{}).
		Where("assessment_id = ? AND status = ?", assessmentID, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *assessmentRequestRepository) PendingExistsForName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssessmentRequest{}).
		Where("name = ? AND assessment_id IS NULL AND status = ?", name, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}
