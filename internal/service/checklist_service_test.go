package service

import (
	"context"
	"testing"

	"warelic/internal/models"
	"warelic/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLocation(t *testing.T, env *testEnv) *models.WarehouseLocation {
	t.Helper()
	loc, err := env.checklist.CreateLocation(context.Background(), CreateLocationInput{
		Code:         "WH-100",
		Address:      "100 Harbor Way",
		OperatorName: "Northgate Logistics",
	})
	require.NoError(t, err)
	return loc
}

func TestCreateLocationDuplicateCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedLocation(t, env)

	_, err := env.checklist.CreateLocation(context.Background(), CreateLocationInput{
		Code:         "WH-100",
		Address:      "elsewhere",
		OperatorName: "Other",
	})
	assertAppError(t, err, "CONFLICT")
}

func TestResubmitCreatesPendingSections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	loc := seedLocation(t, env)

	view, err := env.checklist.Resubmit(ctx, ResubmitInput{
		LocationID: loc.ID,
		Fire: []FireSectionInput{
			{Code: "EXT-01", Findings: "Extinguishers serviced", Compliant: true},
		},
		Storage: []StorageSectionInput{
			{Code: "TEMP-01", TemperatureC: 4.0, HumidityPct: 60, Condition: "Chilled area stable"},
		},
	})
	require.NoError(t, err)
	require.Len(t, view.FireSections, 1)
	require.Len(t, view.StorageSections, 1)
	assert.Equal(t, models.SectionReviewPending, view.FireSections[0].ReviewStatus)
	assert.Equal(t, models.SectionReviewPending, view.StorageSections[0].ReviewStatus)
}

func TestResubmitArchivesOnlyRejectedSections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	loc := seedLocation(t, env)

	_, err := env.checklist.Resubmit(ctx, ResubmitInput{
		LocationID: loc.ID,
		Fire: []FireSectionInput{
			{Code: "EXT-01", Findings: "First attempt", Compliant: false},
			{Code: "ALM-01", Findings: "Alarms tested", Compliant: true},
		},
	})
	require.NoError(t, err)

	// The reviewer rejects one section and accepts the other.
	require.NoError(t, env.checklist.ReviewSection(ctx, ReviewSectionInput{
		LocationID: loc.ID, ReviewerID: env.reviewer.ID,
		SectionType: "fire", Code: "EXT-01", Accept: false, Notes: "service overdue",
	}))
	require.NoError(t, env.checklist.ReviewSection(ctx, ReviewSectionInput{
		LocationID: loc.ID, ReviewerID: env.reviewer.ID,
		SectionType: "fire", Code: "ALM-01", Accept: true,
	}))

	_, err = env.checklist.Resubmit(ctx, ResubmitInput{
		LocationID: loc.ID,
		Fire: []FireSectionInput{
			{Code: "EXT-01", Findings: "Second attempt", Compliant: true},
			{Code: "ALM-01", Findings: "Alarms retested", Compliant: true},
		},
	})
	require.NoError(t, err)

	// The rejected section was archived with its pre-overwrite values.
	rejected, err := env.checklists.GetFireSection(ctx, loc.ID, "EXT-01")
	require.NoError(t, err)
	hist, err := env.checklists.FireHistory(ctx, rejected.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "First attempt", hist[0].Findings)
	assert.Equal(t, models.SectionReviewRejected, hist[0].ReviewStatus)
	assert.Equal(t, "service overdue", hist[0].ReviewNotes)
	assert.Equal(t, "Second attempt", rejected.Findings)
	assert.Equal(t, models.SectionReviewPending, rejected.ReviewStatus)
	assert.Empty(t, rejected.ReviewNotes)

	// The accepted section was overwritten without a snapshot.
	accepted, err := env.checklists.GetFireSection(ctx, loc.ID, "ALM-01")
	require.NoError(t, err)
	acceptedHist, err := env.checklists.FireHistory(ctx, accepted.ID)
	require.NoError(t, err)
	assert.Empty(t, acceptedHist)
	assert.Equal(t, models.SectionReviewPending, accepted.ReviewStatus)
}

func TestReviewSectionRequiresReviewerAndPendingState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	loc := seedLocation(t, env)

	_, err := env.checklist.Resubmit(ctx, ResubmitInput{
		LocationID: loc.ID,
		Storage:    []StorageSectionInput{{Code: "TEMP-01", TemperatureC: 3.5, Condition: "ok"}},
	})
	require.NoError(t, err)

	err = env.checklist.ReviewSection(ctx, ReviewSectionInput{
		LocationID: loc.ID, ReviewerID: env.requester.ID,
		SectionType: "storage", Code: "TEMP-01", Accept: true,
	})
	assertAppError(t, err, "UNAUTHORIZED")

	require.NoError(t, env.checklist.ReviewSection(ctx, ReviewSectionInput{
		LocationID: loc.ID, ReviewerID: env.reviewer.ID,
		SectionType: "storage", Code: "TEMP-01", Accept: true,
	}))

	// A decided section cannot be re-reviewed until resubmitted.
	err = env.checklist.ReviewSection(ctx, ReviewSectionInput{
		LocationID: loc.ID, ReviewerID: env.reviewer.ID,
		SectionType: "storage", Code: "TEMP-01", Accept: false,
	})
	assertAppError(t, err, "VALIDATION_ERROR")
}

func TestResubmitSectionDocumentReplacesPrevious(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	loc := seedLocation(t, env)

	_, err := env.checklist.Resubmit(ctx, ResubmitInput{
		LocationID: loc.ID,
		Fire:       []FireSectionInput{{Code: "EXT-01", Findings: "v1", Compliant: false}},
		Files: map[string]models.UploadedFile{
			"fire:EXT-01": testutil.PDFUpload("cert-v1.pdf", []byte("first certificate")),
		},
	})
	require.NoError(t, err)

	sec, err := env.checklists.GetFireSection(ctx, loc.ID, "EXT-01")
	require.NoError(t, err)
	docs, err := env.documents.ListByOwner(ctx, models.OwnerTypeFireSection, sec.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = env.checklist.Resubmit(ctx, ResubmitInput{
		LocationID: loc.ID,
		Fire:       []FireSectionInput{{Code: "EXT-01", Findings: "v2", Compliant: true}},
		Files: map[string]models.UploadedFile{
			"fire:EXT-01": testutil.PDFUpload("cert-v2.pdf", []byte("second certificate")),
		},
	})
	require.NoError(t, err)

	docs, err = env.documents.ListByOwner(ctx, models.OwnerTypeFireSection, sec.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "cert-v2.pdf", docs[0].OriginalName)

	_, data, err := env.docs.OwnerDownload(ctx, models.OwnerTypeFireSection, sec.ID, "fire:EXT-01")
	require.NoError(t, err)
	assert.Equal(t, []byte("second certificate"), data)
}

func TestResubmitRejectsUnmatchedSlots(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loc := seedLocation(t, env)

	_, err := env.checklist.Resubmit(context.Background(), ResubmitInput{
		LocationID: loc.ID,
		Fire:       []FireSectionInput{{Code: "EXT-01"}},
		Files: map[string]models.UploadedFile{
			"fire:OTHER": testutil.PDFUpload("cert.pdf", []byte("x")),
		},
	})
	assertAppError(t, err, "VALIDATION_ERROR")
}

func TestResubmitRequiresSections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loc := seedLocation(t, env)

	_, err := env.checklist.Resubmit(context.Background(), ResubmitInput{LocationID: loc.ID})
	assertAppError(t, err, "VALIDATION_ERROR")
}
