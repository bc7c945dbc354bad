package service

import (
	"context"
	"os"
	"testing"

	"warelic/internal/models"
	"warelic/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessmentRequestSubmitValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	id := uint(1)

	tests := []struct {
		name  string
		input SubmitAssessmentRequestInput
	}{
		{
			name:  "unknown action",
			input: SubmitAssessmentRequestInput{RequesterID: env.requester.ID, Action: "replace", Name: "X"},
		},
		{
			name:  "create with target",
			input: SubmitAssessmentRequestInput{RequesterID: env.requester.ID, Action: models.RequestActionCreate, AssessmentID: &id, Name: "X"},
		},
		{
			name:  "create without name",
			input: SubmitAssessmentRequestInput{RequesterID: env.requester.ID, Action: models.RequestActionCreate, Name: "  "},
		},
		{
			name:  "update without target",
			input: SubmitAssessmentRequestInput{RequesterID: env.requester.ID, Action: models.RequestActionUpdate, Name: "X"},
		},
		{
			name:  "delete without target",
			input: SubmitAssessmentRequestInput{RequesterID: env.requester.ID, Action: models.RequestActionDelete},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.assessmentRequests.Submit(ctx, tt.input)
			assertAppError(t, err, "VALIDATION_ERROR")
		})
	}
}

func TestAssessmentRequestDuplicatePendingConflict(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	target := &models.Assessment{Name: "Dock Safety"}
	require.NoError(t, env.assessments.Create(ctx, target))

	_, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID:  env.requester.ID,
		Action:       models.RequestActionUpdate,
		AssessmentID: &target.ID,
		Name:         "Dock Safety v2",
	})
	require.NoError(t, err)

	// Second pending request for the same target, regardless of action.
	_, err = env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID:  env.requester.ID,
		Action:       models.RequestActionDelete,
		AssessmentID: &target.ID,
	})
	assertAppError(t, err, "CONFLICT")

	// And a duplicate pending create by proposed name.
	_, err = env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Brand New",
	})
	require.NoError(t, err)
	_, err = env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Brand New",
	})
	assertAppError(t, err, "CONFLICT")
}

func TestAssessmentRequestUpdateCapturesSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	target := &models.Assessment{Name: "Cold Chain", Description: "original", Methodology: "ISO-1"}
	require.NoError(t, env.assessments.Create(ctx, target))

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID:  env.requester.ID,
		Action:       models.RequestActionUpdate,
		AssessmentID: &target.ID,
		Name:         "Cold Chain",
		Description:  "revised",
	})
	require.NoError(t, err)

	snap, err := req.Original()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, target.ID, snap.ID)
	assert.Equal(t, "original", snap.Description)
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestAssessmentRequestApproveCreatePromotesDocuments(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	plaintext := []byte("methodology statement")

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Hazmat Handling",
		Description: "Hazardous materials storage practice",
		Files: map[string]models.UploadedFile{
			"assessment": testutil.PDFUpload("methodology.pdf", plaintext),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	staged, err := env.documents.ListStaged(ctx, models.RequestKindAssessment, req.ID)
	require.NoError(t, err)
	require.Len(t, staged, 1)

	reviewed, err := env.assessmentRequests.Review(ctx, ReviewInput{
		RequestID:  req.ID,
		ReviewerID: env.reviewer.ID,
		Approve:    true,
		Notes:      "looks complete",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.AssessmentID)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.Equal(t, env.reviewer.ID, *reviewed.ReviewedByID)

	// The canonical aggregate exists and owns exactly the promoted document.
	created, err := env.assessments.GetByID(ctx, *reviewed.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, "Hazmat Handling", created.Name)

	docs, err := env.documents.ListByOwner(ctx, models.OwnerTypeAssessment, created.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	data, err := env.store.Retrieve(docs[0].Path, docs[0].IV, docs[0].AuthTag)
	require.NoError(t, err)
	assert.Equal(t, plaintext, data)

	// Exactly once: the staged row and file are gone.
	leftover, err := env.documents.ListStaged(ctx, models.RequestKindAssessment, req.ID)
	require.NoError(t, err)
	assert.Empty(t, leftover)
	_, statErr := os.Stat(staged[0].Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssessmentRequestReviewIsTerminal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Pest Control",
	})
	require.NoError(t, err)

	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: env.reviewer.ID, Approve: false})
	require.NoError(t, err)

	// A second decision of either kind is refused.
	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: env.reviewer.ID, Approve: true})
	assertAppError(t, err, "VALIDATION_ERROR")
	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: env.reviewer.ID, Approve: false})
	assertAppError(t, err, "VALIDATION_ERROR")
}

func TestAssessmentRequestReviewRequiresReviewerRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Lighting",
	})
	require.NoError(t, err)

	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: env.requester.ID, Approve: true})
	assertAppError(t, err, "UNAUTHORIZED")

	// Still pending afterwards.
	got, _, err := env.assessmentRequests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
}

func TestAssessmentRequestRejectLeavesNoTrace(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Ventilation",
		Files: map[string]models.UploadedFile{
			"assessment": testutil.PDFUpload("ventilation.pdf", []byte("airflow diagrams")),
		},
	})
	require.NoError(t, err)

	staged, err := env.documents.ListStaged(ctx, models.RequestKindAssessment, req.ID)
	require.NoError(t, err)
	require.Len(t, staged, 1)

	reviewed, err := env.assessmentRequests.Review(ctx, ReviewInput{
		RequestID:  req.ID,
		ReviewerID: env.reviewer.ID,
		Approve:    false,
		Notes:      "insufficient detail",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, reviewed.Status)
	assert.Equal(t, "insufficient detail", reviewed.ReviewNotes)

	// No canonical aggregate, no staged rows, no staged file.
	_, total, err := env.assessments.List(ctx, 10, 0, "Ventilation")
	require.NoError(t, err)
	assert.Zero(t, total)
	leftover, err := env.documents.ListStaged(ctx, models.RequestKindAssessment, req.ID)
	require.NoError(t, err)
	assert.Empty(t, leftover)
	_, statErr := os.Stat(staged[0].Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssessmentRequestApplyFailureKeepsPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Loading Bays",
	})
	require.NoError(t, err)

	// The name gets taken between submission and review.
	require.NoError(t, env.assessments.Create(ctx, &models.Assessment{Name: "Loading Bays"}))

	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: env.reviewer.ID, Approve: true})
	assertAppError(t, err, "CONFLICT")

	// The failed apply rolled the status write back with it.
	got, _, err := env.assessmentRequests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
	assert.Nil(t, got.ReviewedByID)
}

func TestAssessmentRequestDeleteBlockedByChildren(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	target := &models.Assessment{Name: "Structural"}
	require.NoError(t, env.assessments.Create(ctx, target))
	require.NoError(t, env.assessments.CreateSection(ctx, &models.SubSection{
		AssessmentID: target.ID, Name: "Roofing",
	}))

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID:  env.requester.ID,
		Action:       models.RequestActionDelete,
		AssessmentID: &target.ID,
	})
	require.NoError(t, err)

	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: env.reviewer.ID, Approve: true})
	assertAppError(t, err, "VALIDATION_ERROR")

	// Target intact, request still pending.
	_, err = env.assessments.GetByID(ctx, target.ID)
	require.NoError(t, err)
	got, _, err := env.assessmentRequests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
}

func TestAssessmentRequestApproveDeleteRemovesOwnerDocuments(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// Build an approved assessment with a promoted document first.
	createReq, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Perimeter",
		Files: map[string]models.UploadedFile{
			"assessment": testutil.PDFUpload("fence.pdf", []byte("survey")),
		},
	})
	require.NoError(t, err)
	approved, err := env.assessmentRequests.Review(ctx, ReviewInput{RequestID: createReq.ID, ReviewerID: env.reviewer.ID, Approve: true})
	require.NoError(t, err)
	targetID := *approved.AssessmentID

	docs, err := env.documents.ListByOwner(ctx, models.OwnerTypeAssessment, targetID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	docPath := docs[0].Path

	delReq, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID:  env.requester.ID,
		Action:       models.RequestActionDelete,
		AssessmentID: &targetID,
	})
	require.NoError(t, err)
	_, err = env.assessmentRequests.Review(ctx, ReviewInput{RequestID: delReq.ID, ReviewerID: env.reviewer.ID, Approve: true})
	require.NoError(t, err)

	_, err = env.assessments.GetByID(ctx, targetID)
	require.Error(t, err)
	remaining, err := env.documents.ListByOwner(ctx, models.OwnerTypeAssessment, targetID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	_, statErr := os.Stat(docPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssessmentRequestWithdraw(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.assessmentRequests.Submit(ctx, SubmitAssessmentRequestInput{
		RequesterID: env.requester.ID,
		Action:      models.RequestActionCreate,
		Name:        "Signage",
		Files: map[string]models.UploadedFile{
			"assessment": testutil.PDFUpload("signs.pdf", []byte("placement plan")),
		},
	})
	require.NoError(t, err)

	staged, err := env.documents.ListStaged(ctx, models.RequestKindAssessment, req.ID)
	require.NoError(t, err)
	require.Len(t, staged, 1)

	// Someone else cannot withdraw it.
	err = env.assessmentRequests.Delete(ctx, req.ID, env.reviewer.ID)
	assertAppError(t, err, "UNAUTHORIZED")

	require.NoError(t, env.assessmentRequests.Delete(ctx, req.ID, env.requester.ID))

	_, _, err = env.assessmentRequests.Get(ctx, req.ID)
	assertAppError(t, err, "NOT_FOUND")
	_, statErr := os.Stat(staged[0].Path)
	assert.True(t, os.IsNotExist(statErr))
}
