package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"warelic/internal/models"
	"warelic/internal/repository"
	"warelic/internal/storage"
	"warelic/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv wires real repositories over an in-memory database and a file store
// under t.TempDir(), the way the composition root does in production.
type testEnv struct {
	db    *gorm.DB
	store *storage.Store

	assessments repository.AssessmentRepository
	reports     repository.ReportRepository
	checklists  repository.ChecklistRepository
	documents   repository.DocumentRepository
	users       repository.UserRepository

	assessmentRequests *AssessmentRequestService
	sectionRequests    *SectionRequestService
	reportRequests     *ReportRequestService
	checklist          *ChecklistService
	docs               *DocumentService

	requester *models.User
	reviewer  *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.OpenTestDB(t)
	store, err := storage.New(testutil.NewTestVault(t), storage.Options{
		StagingDir:   filepath.Join(t.TempDir(), "staging"),
		CanonicalDir: filepath.Join(t.TempDir(), "documents"),
	})
	require.NoError(t, err)

	env := &testEnv{
		db:          db,
		store:       store,
		assessments: repository.NewAssessmentRepository(db),
		reports:     repository.NewReportRepository(db),
		checklists:  repository.NewChecklistRepository(db),
		documents:   repository.NewDocumentRepository(db),
		users:       repository.NewUserRepository(db),
	}
	env.assessmentRequests = NewAssessmentRequestService(db,
		repository.NewAssessmentRequestRepository(db), env.assessments, env.documents, env.users, store)
	env.sectionRequests = NewSectionRequestService(db,
		repository.NewSectionRequestRepository(db), env.assessments, env.documents, env.users, store)
	env.reportRequests = NewReportRequestService(db,
		repository.NewReportRequestRepository(db), env.reports, env.documents, env.users, store)
	env.checklist = NewChecklistService(db, env.checklists, env.documents, env.users, store, nil)
	env.docs = NewDocumentService(env.documents, store)

	env.requester = env.seedUser(t, "operator", false)
	env.reviewer = env.seedUser(t, "inspector", true)
	return env
}

func (e *testEnv) seedUser(t *testing.T, username string, reviewer bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.test",
		PasswordHash: "x",
		IsReviewer:   reviewer,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
