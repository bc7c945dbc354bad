package server

import (
	"warelic/internal/models"
	"warelic/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitSectionRequest handles POST /api/sections/requests. Every section
// request is scoped to a parent assessment.
func (s *Server) SubmitSectionRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var body struct {
		Action       models.RequestAction `json:"action"`
		AssessmentID uint                 `json:"assessment_id"`
		SectionID    *uint                `json:"section_id"`
		Name         string               `json:"name"`
		Content      string               `json:"content"`
		Weight       int                  `json:"weight"`
	}
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}
	files, err := formFiles(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	req, err := s.sectionRequests.Submit(ctx, service.SubmitSectionRequestInput{
		RequesterID:  userID,
		Action:       body.Action,
		AssessmentID: body.AssessmentID,
		SectionID:    body.SectionID,
		Name:         body.Name,
		Content:      body.Content,
		Weight:       body.Weight,
		Files:        files,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// ListSectionRequests handles GET /api/sections/requests.
func (s *Server) ListSectionRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, 20)

	requests, total, err := s.sectionRequests.List(ctx, service.ListRequestsInput{
		Status: models.RequestStatus(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
		Search: c.Query("search"),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return pagedResponse(c, requests, total, page)
}

// GetSectionRequest handles GET /api/sections/requests/:id.
func (s *Server) GetSectionRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, staged, err := s.sectionRequests.Get(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"request":          req,
		"staged_documents": staged,
	})
}

// ReviewSectionRequest handles PUT /api/sections/requests/:id/review.
func (s *Server) ReviewSectionRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var body reviewBody
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}
	approve, err := body.approve()
	if err != nil {
		return respondServiceError(c, err)
	}

	req, err := s.sectionRequests.Review(ctx, service.ReviewInput{
		RequestID:  id,
		ReviewerID: userID,
		Approve:    approve,
		Notes:      body.ReviewNotes,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(req)
}

// WithdrawSectionRequest handles DELETE /api/sections/requests/:id.
func (s *Server) WithdrawSectionRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.sectionRequests.Delete(ctx, id, userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DownloadSectionRequestDocument handles
// GET /api/sections/requests/:id/documents/:slot/download.
func (s *Server) DownloadSectionRequestDocument(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	slot, err := decodeSlot(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	doc, data, err := s.documents.StagedDownload(ctx, models.RequestKindSection, id, slot)
	if err != nil {
		return respondServiceError(c, err)
	}
	return sendDocument(c, doc.OriginalName, doc.MimeType, data)
}
