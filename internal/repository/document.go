package repository

import (
	"context"

	"warelic/internal/models"
	"warelic/internal/observability"

	"gorm.io/gorm"
)

// DocumentRepository defines data operations on staged and canonical document
// records. Promotion and cleanup mutate both tables inside the review
// transaction.
type DocumentRepository interface {
	WithTx(tx *gorm.DB) DocumentRepository

	CreateStaged(ctx context.Context, doc *models.StagedDocument) error
	ListStaged(ctx context.Context, kind string, requestID uint) ([]*models.StagedDocument, error)
	GetStagedBySlot(ctx context.Context, kind string, requestID uint, slot string) (*models.StagedDocument, error)
	DeleteStaged(ctx context.Context, id uint) error
	DeleteStagedByRequest(ctx context.Context, kind string, requestID uint) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	ListByOwner(ctx context.Context, ownerType string, ownerID uint) ([]*models.Document, error)
	GetByOwnerSlot(ctx context.Context, ownerType string, ownerID uint, slot string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id uint) error
	DeleteByOwner(ctx context.Context, ownerType string, ownerID uint) error
}

type documentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db, log: observability.NewRepoLogger("documents")}
}

func (r *documentRepository) WithTx(tx *gorm.DB) DocumentRepository {
	return &documentRepository{db: tx, log: r.log}
}

func (r *documentRepository) CreateStaged(ctx context.Context, doc *models.StagedDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepository) ListStaged(ctx context.Context, kind string, requestID uint) ([]*models.StagedDocument, error) {
	var docs []*models.StagedDocument
	err := r.db.WithContext(ctx).
		Where("request_kind = ? AND request_id = ?", kind, requestID).
		Order("id ASC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) GetStagedBySlot(ctx context.Context, kind string, requestID uint, slot string) (*models.StagedDocument, error) {
	var doc models.StagedDocument
	err := r.db.WithContext(ctx).
		Where("request_kind = ? AND request_id = ? AND slot = ?", kind, requestID, slot).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) DeleteStaged(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.StagedDocument{}, id).Error
}

func (r *documentRepository) DeleteStagedByRequest(ctx context.Context, kind string, requestID uint) error {
	return r.db.WithContext(ctx).
		Where("request_kind = ? AND request_id = ?", kind, requestID).
		Delete(&models.StagedDocument{}).Error
}

func (r *documentRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogWrite(ctx, "create", map[string]interface{}{
		"owner_type": doc.OwnerType,
		"owner_id":   doc.OwnerID,
		"slot":       doc.Slot,
	})
	return nil
}

func (r *documentRepository) ListByOwner(ctx context.Context, ownerType string, ownerID uint) ([]*models.Document, error) {
	var docs []*models.Document
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("id ASC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) GetByOwnerSlot(ctx context.Context, ownerType string, ownerID uint, slot string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND slot = ?", ownerType, ownerID, slot).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) DeleteDocument(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Document{}, id).Error
}

func (r *documentRepository) DeleteByOwner(ctx context.Context, ownerType string, ownerID uint) error {
	return r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Delete(&models.Document{}).Error
}
