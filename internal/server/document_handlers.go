package server

import (
	"warelic/internal/models"

	"github.com/gofiber/fiber/v2"
)

// validOwnerTypes is the closed set of aggregates that can own documents.
var validOwnerTypes = map[string]struct{}{
	models.OwnerTypeAssessment:     {},
	models.OwnerTypeSubSection:     {},
	models.OwnerTypeReport:         {},
	models.OwnerTypeSubmission:     {},
	models.OwnerTypeFireSection:    {},
	models.OwnerTypeStorageSection: {},
}

func ownerTypeParam(c *fiber.Ctx) (string, error) {
	ownerType := c.Params("ownerType")
	if _, ok := validOwnerTypes[ownerType]; !ok {
		return "", models.NewValidationError("Invalid owner type")
	}
	return ownerType, nil
}

// ListOwnerDocuments handles GET /api/documents/:ownerType/:ownerId.
func (s *Server) ListOwnerDocuments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ownerType, err := ownerTypeParam(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	ownerID, err := s.parseID(c, "ownerId")
	if err != nil {
		return nil
	}

	docs, err := s.documents.ListOwnerDocuments(ctx, ownerType, ownerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(docs)
}

// DownloadOwnerDocument handles
// GET /api/documents/:ownerType/:ownerId/:slot/download.
func (s *Server) DownloadOwnerDocument(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ownerType, err := ownerTypeParam(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	ownerID, err := s.parseID(c, "ownerId")
	if err != nil {
		return nil
	}
	slot, err := decodeSlot(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	doc, data, err := s.documents.OwnerDownload(ctx, ownerType, ownerID, slot)
	if err != nil {
		return respondServiceError(c, err)
	}
	return sendDocument(c, doc.OriginalName, doc.MimeType, data)
}
