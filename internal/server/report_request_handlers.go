package server

import (
	"time"

	"warelic/internal/models"
	"warelic/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitReportRequest handles POST /api/reports/requests. Line items travel in
// the JSON payload; per-item files use "item:<line_no>" slots.
func (s *Server) SubmitReportRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var body struct {
		Action      models.RequestAction      `json:"action"`
		ReportID    *uint                     `json:"report_id"`
		Title       string                    `json:"title"`
		Inspector   string                    `json:"inspector"`
		InspectedAt time.Time                 `json:"inspected_at"`
		Summary     string                    `json:"summary"`
		Items       []service.ReportItemInput `json:"items"`
	}
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}
	files, err := formFiles(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	req, err := s.reportRequests.Submit(ctx, service.SubmitReportRequestInput{
		RequesterID: userID,
		Action:      body.Action,
		ReportID:    body.ReportID,
		Title:       body.Title,
		Inspector:   body.Inspector,
		InspectedAt: body.InspectedAt,
		Summary:     body.Summary,
		Items:       body.Items,
		Files:       files,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// ListReportRequests handles GET /api/reports/requests.
func (s *Server) ListReportRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, 20)

	requests, total, err := s.reportRequests.List(ctx, service.ListRequestsInput{
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

// GetReportRequest handles GET /api/reports/requests/:id.
func (s *Server) GetReportRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, staged, err := s.reportRequests.Get(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"request":          req,
		"staged_documents": staged,
	})
}

// ReviewReportRequest handles PUT /api/reports/requests/:id/review.
func (s *Server) ReviewReportRequest(c *fiber.Ctx) error {
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

	req, err := s.reportRequests.Review(ctx, service.ReviewInput{
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

// WithdrawReportRequest handles DELETE /api/reports/requests/:id.
func (s *Server) WithdrawReportRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.reportRequests.Delete(ctx, id, userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DownloadReportRequestDocument handles
// GET /api/reports/requests/:id/documents/:slot/download.
func (s *Server) DownloadReportRequestDocument(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	slot, err := decodeSlot(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	doc, data, err := s.documents.StagedDownload(ctx, models.RequestKindReport, id, slot)
	if err != nil {
		return respondServiceError(c, err)
	}
	return sendDocument(c, doc.OriginalName, doc.MimeType, data)
}
