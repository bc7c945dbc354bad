package repository

import (
	"context"

	"warelic/internal/models"

	"gorm.io/gorm"
)

// AssessmentRepository defines data operations on the assessment aggregate and
// its sub-sections. Approvals mutate canonical rows inside a transaction, so
// every method set carries a WithTx variant bound to the caller's tx.
type AssessmentRepository interface {
	WithTx(tx *gorm.DB) AssessmentRepository

	Create(ctx context.Context, a *models.Assessment) error
	Update(ctx context.Context, a *models.Assessment) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Assessment, error)
	List(ctx context.Context, limit, offset int, search string) ([]*models.Assessment, int64, error)
	NameExists(ctx context.Context, name string, excludeID uint) (bool, error)
	SectionCount(ctx context.Context, assessmentID uint) (int64, error)

	CreateSection(ctx context.Context, s *models.SubSection) error
	UpdateSection(ctx context.Context, s *models.SubSection) error
	DeleteSection(ctx context.Context, id uint) error
	GetSection(ctx context.Context, id uint) (*models.SubSection, error)
	SectionNameExists(ctx context.Context, assessmentID uint, name string, excludeID uint) (bool, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository creates a new assessment repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) WithTx(tx *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: tx}
}

func (r *assessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *assessmentRepository) Update(ctx context.Context, a *models.Assessment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *assessmentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Assessment{}, id).Error
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	var a models.Assessment
	if err := r.db.WithContext(ctx).Preload("SubSections").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assessmentRepository) List(ctx context.Context, limit, offset int, search string) ([]*models.Assessment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Assessment{})
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var assessments []*models.Assessment
	err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&assessments).Error
	return assessments, total, err
}

func (r *assessmentRepository) NameExists(ctx context.Context, name string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Assessment{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *assessmentRepository) SectionCount(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SubSection{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error
	return count, err
}

func (r *assessmentRepository) CreateSection(ctx context.Context, s *models.SubSection) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *assessmentRepository) UpdateSection(ctx context.Context, s *models.SubSection) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *assessmentRepository) DeleteSection(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.SubSection{}, id).Error
}

func (r *assessmentRepository) GetSection(ctx context.Context, id uint) (*models.SubSection, error) {
	var s models.SubSection
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *assessmentRepository) SectionNameExists(ctx context.Context, assessmentID uint, name string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.SubSection{}).
		Where("assessment_id = ? AND name = ?", assessmentID, name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
