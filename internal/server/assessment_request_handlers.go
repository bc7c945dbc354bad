package server

import (
	"warelic/internal/models"
	"warelic/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitAssessmentRequest handles POST /api/assessments/requests.
// Accepts plain JSON, or multipart with a JSON "payload" field plus file parts
// keyed by document slot.
func (s *Server) SubmitAssessmentRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var body struct {
		Action       models.RequestAction `json:"action"`
		AssessmentID *uint                `json:"assessment_id"`
		Name         string               `json:"name"`
		Description  string               `json:"description"`
		Methodology  string               `json:"methodology"`
	}
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}
	files, err := formFiles(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	req, err := s.assessmentRequests.Submit(ctx, service.SubmitAssessmentRequestInput{
		RequesterID:  userID,
		Action:       body.Action,
		AssessmentID: body.AssessmentID,
		Name:         body.Name,
		Description:  body.Description,
		Methodology:  body.Methodology,
		Files:        files,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// ListAssessmentRequests handles GET /api/assessments/requests.
func (s *Server) ListAssessmentRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, 20)

	requests, total, err := s.assessmentRequests.List(ctx, service.ListRequestsInput{
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

// GetAssessmentRequest handles GET /api/assessments/requests/:id.
func (s *Server) GetAssessmentRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, staged, err := s.assessmentRequests.Get(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"request":          req,
		"staged_documents": staged,
	})
}

// ReviewAssessmentRequest handles PUT /api/assessments/requests/:id/review.
func (s *Server) ReviewAssessmentRequest(c *fiber.Ctx) error {
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

	req, err := s.assessmentRequests.Review(ctx, service.ReviewInput{
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

// WithdrawAssessmentRequest handles DELETE /api/assessments/requests/:id.
// Only the requester may withdraw, and only while the request is pending.
func (s *Server) WithdrawAssessmentRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.assessmentRequests.Delete(ctx, id, userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DownloadAssessmentRequestDocument handles
// GET /api/assessments/requests/:id/documents/:slot/download.
func (s *Server) DownloadAssessmentRequestDocument(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	slot, err := decodeSlot(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	doc, data, err := s.documents.StagedDownload(ctx, models.RequestKindAssessment, id, slot)
	if err != nil {
		return respondServiceError(c, err)
	}
	return sendDocument(c, doc.OriginalName, doc.MimeType, data)
}
