package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/url"
	"strings"

	"warelic/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// pagedResponse is the envelope for every listing endpoint.
func pagedResponse(c *fiber.Ctx, data any, total int64, page Pagination) error {
	totalPages := 0
	if page.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(page.Limit)))
	}
	return c.JSON(fiber.Map{
		"data": data,
		"meta": fiber.Map{
			"total":       total,
			"limit":       page.Limit,
			"offset":      page.Offset,
			"total_pages": totalPages,
		},
	})
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondServiceError translates an application error into an HTTP response.
// Conflicts are deliberate-client errors here, not races, so they map to 400
// alongside validation failures.
func respondServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	switch appErr.Code {
	case "VALIDATION_ERROR", "CONFLICT", "DECRYPTION_ERROR":
		return models.RespondWithError(c, fiber.StatusBadRequest, appErr)
	case "NOT_FOUND":
		return models.RespondWithError(c, fiber.StatusNotFound, appErr)
	case "UNAUTHORIZED":
		return models.RespondWithError(c, fiber.StatusForbidden, appErr)
	default:
		return models.RespondWithError(c, fiber.StatusInternalServerError, appErr)
	}
}

// parseBody decodes the request payload into dst. Plain JSON bodies decode
// directly; multipart submissions carry their JSON in the "payload" field so
// file parts can ride along in the same request.
func parseBody(c *fiber.Ctx, dst any) error {
	ct := c.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(ct, fiber.MIMEMultipartForm) {
		if err := c.BodyParser(dst); err != nil {
			return models.NewValidationError("Invalid request body")
		}
		return nil
	}

	payload := c.FormValue("payload")
	if payload == "" {
		return models.NewValidationError("Multipart submissions require a 'payload' field")
	}
	if err := c.App().Config().JSONDecoder([]byte(payload), dst); err != nil {
		return models.NewValidationError("Invalid JSON in 'payload' field")
	}
	return nil
}

// formFiles reads every multipart file part into memory, keyed by its form
// field name. The field name is the document slot.
func formFiles(c *fiber.Ctx) (map[string]models.UploadedFile, error) {
	ct := c.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(ct, fiber.MIMEMultipartForm) {
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart form")
	}

	files := make(map[string]models.UploadedFile, len(form.File))
	for slot, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			return nil, models.NewValidationError(fmt.Sprintf("Slot %q carries more than one file", slot))
		}
		uploaded, err := readFilePart(headers[0])
		if err != nil {
			return nil, err
		}
		files[slot] = uploaded
	}
	if len(files) == 0 {
		return nil, nil
	}
	return files, nil
}

func readFilePart(header *multipart.FileHeader) (models.UploadedFile, error) {
	f, err := header.Open()
	if err != nil {
		return models.UploadedFile{}, models.NewValidationError("Uploaded file could not be read")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.UploadedFile{}, models.NewValidationError("Uploaded file could not be read")
	}
	return models.UploadedFile{
		Bytes:        data,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
	}, nil
}

// decodeSlot extracts the :slot route parameter. Slots such as "item:2" or
// "fire:EXT-01" contain characters clients percent-encode.
func decodeSlot(c *fiber.Ctx) (string, error) {
	slot, err := url.PathUnescape(c.Params("slot"))
	if err != nil || slot == "" {
		return "", models.NewValidationError("Invalid document slot")
	}
	return slot, nil
}

// sendDocument streams a decrypted document with its original name and type.
func sendDocument(c *fiber.Ctx, originalName, mimeType string, data []byte) error {
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", originalName))
	if mimeType != "" {
		c.Set(fiber.HeaderContentType, mimeType)
	}
	return c.Send(data)
}

// reviewBody is the shared request shape for PUT .../:id/review.
type reviewBody struct {
	Status      string `json:"status"`
	ReviewNotes string `json:"review_notes"`
}

// approve validates the verdict and reports whether it is an approval.
func (b reviewBody) approve() (bool, error) {
	switch b.Status {
	case string(models.RequestStatusApproved):
		return true, nil
	case string(models.RequestStatusRejected):
		return false, nil
	default:
		return false, models.NewValidationError("Status must be 'approved' or 'rejected'")
	}
}
