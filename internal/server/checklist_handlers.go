package server

import (
	"warelic/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateLocation handles POST /api/locations.
func (s *Server) CreateLocation(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var body service.CreateLocationInput
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}

	loc, err := s.checklists.CreateLocation(ctx, body)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(loc)
}

// ListLocations handles GET /api/locations.
func (s *Server) ListLocations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, 20)

	locations, total, err := s.checklists.ListLocations(ctx, page.Limit, page.Offset, c.Query("search"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return pagedResponse(c, locations, total, page)
}

// GetChecklist handles GET /api/locations/:id/checklist.
func (s *Server) GetChecklist(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.checklists.GetChecklist(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// ResubmitChecklist handles PUT /api/locations/:id/checklist. Sections travel
// in the JSON payload; section documents use "fire:<code>" and
// "storage:<code>" slots on multipart submissions.
func (s *Server) ResubmitChecklist(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var body struct {
		Fire    []service.FireSectionInput    `json:"fire"`
		Storage []service.StorageSectionInput `json:"storage"`
	}
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}
	files, err := formFiles(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	view, err := s.checklists.Resubmit(ctx, service.ResubmitInput{
		LocationID: id,
		Fire:       body.Fire,
		Storage:    body.Storage,
		Files:      files,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// ReviewChecklistSection handles PUT /api/locations/:id/checklist/review.
func (s *Server) ReviewChecklistSection(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var body struct {
		SectionType string `json:"section_type"`
		Code        string `json:"code"`
		Accept      bool   `json:"accept"`
		Notes       string `json:"notes"`
	}
	if err := parseBody(c, &body); err != nil {
		return respondServiceError(c, err)
	}

	if err := s.checklists.ReviewSection(ctx, service.ReviewSectionInput{
		LocationID:  id,
		ReviewerID:  userID,
		SectionType: body.SectionType,
		Code:        body.Code,
		Accept:      body.Accept,
		Notes:       body.Notes,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSectionHistory handles
// GET /api/locations/:id/checklist/:sectionType/:code/history.
func (s *Server) GetSectionHistory(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	history, err := s.checklists.SectionHistory(ctx, id, c.Params("sectionType"), c.Params("code"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(history)
}
