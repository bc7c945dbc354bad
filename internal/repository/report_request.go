package repository

import (
	"context"

	"warelic/internal/cache"
	"warelic/internal/models"

	"gorm.io/gorm"
)

// ReportRequestRepository defines data operations on inspection report change
// requests, including their proposed line items.
type ReportRequestRepository interface {
	WithTx(tx *gorm.DB) ReportRequestRepository

	Create(ctx context.Context, req *models.ReportRequest) error
	Save(ctx context.Context, req *models.ReportRequest) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.ReportRequest, error)
	List(ctx context.Context, status models.RequestStatus, limit, offset int, search string) ([]*models.ReportRequest, int64, error)
	PendingExistsForTarget(ctx context.Context, reportID uint) (bool, error)
	PendingExistsForTitle(ctx context.Context, title string) (bool, error)
}

type reportRequestRepository struct {
	db *gorm.DB
}

// NewReportRequestRepository creates a new report request repository.
func NewReportRequestRepository(db *gorm.DB) ReportRequestRepository {
	return &reportRequestRepository{db: db}
}

func (r *reportRequestRepository) WithTx(tx *gorm.DB) ReportRequestRepository {
	return &reportRequestRepository{db: tx}
}

func (r *reportRequestRepository) Create(ctx context.Context, req *models.ReportRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *reportRequestRepository) Save(ctx context.Context, req *models.ReportRequest) error {
	err := r.db.WithContext(ctx).Omit("Items").Save(req).Error
	if err == nil {
		cache.InvalidateReportRequest(ctx, req.ID)
	}
	return err
}

func (r *reportRequestRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		Delete(&models.ReportRequestItem{}).Error
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Delete(&models.ReportRequest{}, id).Error
	if err == nil {
		cache.InvalidateReportRequest(ctx, id)
	}
	return err
}

func (r *reportRequestRepository) GetByID(ctx context.Context, id uint) (*models.ReportRequest, error) {
	var req models.ReportRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("RequestedByUser").
		Preload("ReviewedByUser").
		First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *reportRequestRepository) List(ctx context.Context, status models.RequestStatus, limit, offset int, search string) ([]*models.ReportRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ReportRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if search != "" {
		q = q.Where("title LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []*models.ReportRequest
	err := q.Preload("RequestedByUser").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, total, err
}

func (r *reportRequestRepository) PendingExistsForTarget(ctx context.Context, reportID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReportRequest{}).
		Where("report_id = ? AND status = ?", reportID, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *reportRequestRepository) PendingExistsForTitle(ctx context.Context, title string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReportRequest{}).
		Where("title = ? AND report_id IS NULL AND status = ?", title, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}
