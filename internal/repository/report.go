package repository

import (
	"context"

	"warelic/internal/models"

	"gorm.io/gorm"
)

// ReportRepository defines data operations on inspection reports and their
// line-item submissions.
type ReportRepository interface {
	WithTx(tx *gorm.DB) ReportRepository

	Create(ctx context.Context, rep *models.InspectionReport) error
	Update(ctx context.Context, rep *models.InspectionReport) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.InspectionReport, error)
	List(ctx context.Context, limit, offset int, search string) ([]*models.InspectionReport, int64, error)
	TitleExists(ctx context.Context, title string, excludeID uint) (bool, error)

	// ReplaceSubmissions deletes the report's current line items and inserts
	// the given set. Submission IDs are fresh after the call.
	ReplaceSubmissions(ctx context.Context, reportID uint, subs []models.Submission) ([]models.Submission, error)
	DeleteSubmissions(ctx context.Context, reportID uint) error
	GetSubmissionByLine(ctx context.Context, reportID uint, lineNo int) (*models.Submission, error)
	SubmissionCount(ctx context.Context, reportID uint) (int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new inspection report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) WithTx(tx *gorm.DB) ReportRepository {
	return &reportRepository{db: tx}
}

func (r *reportRepository) Create(ctx context.Context, rep *models.InspectionReport) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *reportRepository) Update(ctx context.Context, rep *models.InspectionReport) error {
	return r.db.WithContext(ctx).Omit("Submissions").Save(rep).Error
}

func (r *reportRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.InspectionReport{}, id).Error
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.InspectionReport, error) {
	var rep models.InspectionReport
	err := r.db.WithContext(ctx).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		First(&rep, id).Error
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepository) List(ctx context.Context, limit, offset int, search string) ([]*models.InspectionReport, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.InspectionReport{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("title LIKE ? OR inspector LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []*models.InspectionReport
	err := q.Order("inspected_at DESC").Limit(limit).Offset(offset).Find(&reports).Error
	return reports, total, err
}

func (r *reportRepository) TitleExists(ctx context.Context, title string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.InspectionReport{}).Where("title = ?", title)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *reportRepository) ReplaceSubmissions(ctx context.Context, reportID uint, subs []models.Submission) ([]models.Submission, error) {
	if err := r.DeleteSubmissions(ctx, reportID); err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].ID = 0
		subs[i].ReportID = reportID
	}
	if len(subs) == 0 {
		return subs, nil
	}
	if err := r.db.WithContext(ctx).Create(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *reportRepository) DeleteSubmissions(ctx context.Context, reportID uint) error {
	return r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Delete(&models.Submission{}).Error
}

func (r *reportRepository) GetSubmissionByLine(ctx context.Context, reportID uint, lineNo int) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.WithContext(ctx).
		Where("report_id = ? AND line_no = ?", reportID, lineNo).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *reportRepository) SubmissionCount(ctx context.Context, reportID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("report_id = ?", reportID).
		Count(&count).Error
	return count, err
}
