package service

import (
	"context"
	"errors"

	"warelic/internal/models"
	"warelic/internal/repository"
	"warelic/internal/storage"

	"gorm.io/gorm"
)

// DocumentService decrypts stored documents for download: staged files of a
// pending request, and canonical files of a resolved owner.
type DocumentService struct {
	documents repository.DocumentRepository
	store     *storage.Store
}

// NewDocumentService creates a new document service.
func NewDocumentService(documents repository.DocumentRepository, store *storage.Store) *DocumentService {
	return &DocumentService{documents: documents, store: store}
}

// StagedDownload returns the metadata and plaintext of one staged document.
func (s *DocumentService) StagedDownload(ctx context.Context, kind string, requestID uint, slot string) (*models.StagedDocument, []byte, error) {
	doc, err := s.documents.GetStagedBySlot(ctx, kind, requestID, slot)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, models.NewNotFoundError("Staged document", slot)
	}
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Retrieve(doc.Path, doc.IV, doc.AuthTag)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// OwnerDownload returns the metadata and plaintext of one canonical document.
func (s *DocumentService) OwnerDownload(ctx context.Context, ownerType string, ownerID uint, slot string) (*models.Document, []byte, error) {
	doc, err := s.documents.GetByOwnerSlot(ctx, ownerType, ownerID, slot)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, models.NewNotFoundError("Document", slot)
	}
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Retrieve(doc.Path, doc.IV, doc.AuthTag)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// ListOwnerDocuments returns canonical document metadata for one owner.
func (s *DocumentService) ListOwnerDocuments(ctx context.Context, ownerType string, ownerID uint) ([]*models.Document, error) {
	return s.documents.ListByOwner(ctx, ownerType, ownerID)
}
