package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"warelic/internal/config"
	"warelic/internal/models"
	"warelic/internal/storage"
	"warelic/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "handler-test-secret-0123456789abcdef"

// serverEnv runs the real route table over an in-memory database, with auth
// exercised through signed tokens rather than a stubbed middleware.
type serverEnv struct {
	app       *fiber.App
	srv       *Server
	db        *gorm.DB
	requester *models.User
	reviewer  *models.User
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	db := testutil.OpenTestDB(t)
	store, err := storage.New(testutil.NewTestVault(t), storage.Options{
		StagingDir:   filepath.Join(t.TempDir(), "staging"),
		CanonicalDir: filepath.Join(t.TempDir(), "documents"),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:       testJWTSecret,
		MaxUploadSizeMB: 10,
	}
	srv, err := NewServerWithDeps(cfg, db, nil, store)
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupRoutes(app)

	env := &serverEnv{app: app, srv: srv, db: db}
	env.requester = env.seedUser(t, "operator", false)
	env.reviewer = env.seedUser(t, "inspector", true)
	return env
}

func (e *serverEnv) seedUser(t *testing.T, username string, reviewer bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.test",
		PasswordHash: "x",
		IsReviewer:   reviewer,
	}
	require.NoError(t, e.srv.userRepo.Create(context.Background(), u))
	return u
}

func (e *serverEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (e *serverEnv) doJSON(t *testing.T, method, path string, userID uint, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token(t, userID))

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestRequestRoutesRequireAuth(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/assessments/requests/", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitAssessmentRequestEndpoint(t *testing.T) {
	env := newServerEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/api/assessments/requests/", env.requester.ID, fiber.Map{
		"action":      "create",
		"name":        "Cold Chain Compliance",
		"description": "Frozen goods handling",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.AssessmentRequest
	decodeJSON(t, resp, &created)
	assert.Equal(t, models.RequestStatusPending, created.Status)
	assert.Equal(t, env.requester.ID, created.RequestedByID)

	// A second pending request proposing the same name is a conflict, reported
	// as a client error.
	resp = env.doJSON(t, http.MethodPost, "/api/assessments/requests/", env.requester.ID, fiber.Map{
		"action": "create",
		"name":   "Cold Chain Compliance",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody models.ErrorResponse
	decodeJSON(t, resp, &errBody)
	assert.Equal(t, "CONFLICT", errBody.Code)

	resp = env.doJSON(t, http.MethodGet, "/api/assessments/requests/?status=pending", env.requester.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Data []models.AssessmentRequest `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	decodeJSON(t, resp, &listing)
	assert.Equal(t, int64(1), listing.Meta.Total)
	require.Len(t, listing.Data, 1)
}

func TestReviewAssessmentRequestEndpoint(t *testing.T) {
	env := newServerEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/api/assessments/requests/", env.requester.ID, fiber.Map{
		"action": "create",
		"name":   "Dock Safety",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.AssessmentRequest
	decodeJSON(t, resp, &created)

	reviewPath := fmt.Sprintf("/api/assessments/requests/%d/review", created.ID)

	// A non-reviewer cannot decide.
	resp = env.doJSON(t, http.MethodPut, reviewPath, env.requester.ID, fiber.Map{
		"status": "approved",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.doJSON(t, http.MethodPut, reviewPath, env.reviewer.ID, fiber.Map{
		"status":       "approved",
		"review_notes": "looks complete",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var reviewed models.AssessmentRequest
	decodeJSON(t, resp, &reviewed)
	assert.Equal(t, models.RequestStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.AssessmentID)

	// Reviewing again is rejected: decisions are terminal.
	resp = env.doJSON(t, http.MethodPut, reviewPath, env.reviewer.ID, fiber.Map{
		"status": "rejected",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// A bogus verdict is rejected before it reaches the service.
	resp = env.doJSON(t, http.MethodPut, reviewPath, env.reviewer.ID, fiber.Map{
		"status": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestMultipartSubmitAndStagedDownload(t *testing.T) {
	env := newServerEnv(t)

	payload, err := json.Marshal(fiber.Map{
		"action": "create",
		"name":   "Hazmat Handling",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("payload", string(payload)))
	part, err := w.CreateFormFile("charter", "charter.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF- hazmat charter"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/assessments/requests/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.requester.ID))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.AssessmentRequest
	decodeJSON(t, resp, &created)

	// The staged document is listed on the request detail.
	resp = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/assessments/requests/%d", created.ID), env.requester.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		StagedDocuments []models.StagedDocument `json:"staged_documents"`
	}
	decodeJSON(t, resp, &detail)
	require.Len(t, detail.StagedDocuments, 1)
	assert.Equal(t, "charter", detail.StagedDocuments[0].Slot)

	// Downloading decrypts back to the original bytes.
	resp = env.doJSON(t, http.MethodGet,
		fmt.Sprintf("/api/assessments/requests/%d/documents/charter/download", created.ID), env.requester.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF- hazmat charter"), data)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "charter.pdf")
}

func TestWithdrawAssessmentRequestEndpoint(t *testing.T) {
	env := newServerEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/api/assessments/requests/", env.requester.ID, fiber.Map{
		"action": "create",
		"name":   "Short-lived",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.AssessmentRequest
	decodeJSON(t, resp, &created)

	path := fmt.Sprintf("/api/assessments/requests/%d", created.ID)

	// Only the requester may withdraw.
	resp = env.doJSON(t, http.MethodDelete, path, env.reviewer.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.doJSON(t, http.MethodDelete, path, env.requester.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.doJSON(t, http.MethodGet, path, env.requester.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestParseIDRejectsGarbage(t *testing.T) {
	env := newServerEnv(t)

	resp := env.doJSON(t, http.MethodGet, "/api/assessments/requests/abc", env.requester.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSubmitReportRequestEndpoint(t *testing.T) {
	env := newServerEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/api/reports/requests/", env.requester.ID, fiber.Map{
		"action":       "create",
		"title":        "Q3 Walkthrough",
		"inspector":    "J. Ramos",
		"inspected_at": "2026-08-10T09:00:00Z",
		"items": []fiber.Map{
			{"line_no": 1, "item": "Dock doors", "result": "pass"},
			{"line_no": 2, "item": "Exits", "result": "fail", "notes": "blocked"},
		},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.ReportRequest
	decodeJSON(t, resp, &created)
	assert.Len(t, created.Items, 2)

	// Duplicate line numbers are rejected up front.
	resp = env.doJSON(t, http.MethodPost, "/api/reports/requests/", env.requester.ID, fiber.Map{
		"action":       "create",
		"title":        "Bad Items",
		"inspected_at": "2026-08-10T09:00:00Z",
		"items": []fiber.Map{
			{"line_no": 1, "item": "A", "result": "pass"},
			{"line_no": 1, "item": "B", "result": "pass"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}
