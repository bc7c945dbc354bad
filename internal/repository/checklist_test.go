package repository

import (
	"context"
	"testing"

	"warelic/internal/models"
	"warelic/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecklistSectionArchiveIsAppendOnly(t *testing.T) {
	t.Parallel()

	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	repo := NewChecklistRepository(db)

	loc := &models.WarehouseLocation{Code: "WH-001", Address: "1 Dock Rd", OperatorName: "Acme Storage"}
	require.NoError(t, repo.CreateLocation(ctx, loc))

	section := &models.FireSafetySection{
		LocationID:   loc.ID,
		Code:         "EXT-01",
		Findings:     "Extinguisher past inspection date",
		Compliant:    false,
		ReviewStatus: models.SectionReviewRejected,
		ReviewNotes:  "Replace and recertify",
	}
	require.NoError(t, repo.SaveFireSection(ctx, section))

	require.NoError(t, repo.ArchiveFireSection(ctx, section))

	// Overwrite after archiving, the way a resubmission does.
	section.Findings = "Extinguisher replaced 2026-08"
	section.Compliant = true
	section.ReviewStatus = models.SectionReviewPending
	section.ReviewNotes = ""
	require.NoError(t, repo.SaveFireSection(ctx, section))

	hist, err := repo.FireHistory(ctx, section.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Extinguisher past inspection date", hist[0].Findings)
	assert.Equal(t, models.SectionReviewRejected, hist[0].ReviewStatus)
	assert.Equal(t, loc.ID, hist[0].LocationID)
	assert.False(t, hist[0].ArchivedAt.IsZero())

	// Second rejection cycle appends, never overwrites.
	section.ReviewStatus = models.SectionReviewRejected
	require.NoError(t, repo.SaveFireSection(ctx, section))
	require.NoError(t, repo.ArchiveFireSection(ctx, section))

	hist, err = repo.FireHistory(ctx, section.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestRejectedSectionIDsByLocation(t *testing.T) {
	t.Parallel()

	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	repo := NewChecklistRepository(db)

	loc := &models.WarehouseLocation{Code: "WH-002", Address: "2 Dock Rd", OperatorName: "Acme Storage"}
	require.NoError(t, repo.CreateLocation(ctx, loc))

	rejected := &models.StorageConditionSection{
		LocationID:   loc.ID,
		Code:         "TEMP-01",
		TemperatureC: 12.5,
		ReviewStatus: models.SectionReviewRejected,
	}
	accepted := &models.StorageConditionSection{
		LocationID:   loc.ID,
		Code:         "TEMP-02",
		TemperatureC: 4.0,
		ReviewStatus: models.SectionReviewAccepted,
	}
	require.NoError(t, repo.SaveStorageSection(ctx, rejected))
	require.NoError(t, repo.SaveStorageSection(ctx, accepted))

	ids, err := repo.RejectedStorageSectionIDs(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{rejected.ID}, ids)

	fireIDs, err := repo.RejectedFireSectionIDs(ctx, loc.ID)
	require.NoError(t, err)
	assert.Empty(t, fireIDs)
}

func TestLocationCodeUnique(t *testing.T) {
	t.Parallel()

	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	repo := NewChecklistRepository(db)

	require.NoError(t, repo.CreateLocation(ctx, &models.WarehouseLocation{
		Code: "WH-003", Address: "3 Dock Rd", OperatorName: "Acme Storage",
	}))
	err := repo.CreateLocation(ctx, &models.WarehouseLocation{
		Code: "WH-003", Address: "Elsewhere", OperatorName: "Other Op",
	})
	require.Error(t, err)

	loc, err := repo.GetLocationByCode(ctx, "WH-003")
	require.NoError(t, err)
	assert.Equal(t, "3 Dock Rd", loc.Address)
}
