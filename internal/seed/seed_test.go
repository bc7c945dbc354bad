package seed

import (
	"testing"

	"warelic/internal/models"
	"warelic/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeederRun(t *testing.T) {
	db := testutil.OpenTestDB(t)

	opts := Options{
		NumOperators:   4,
		NumReviewers:   2,
		NumAssessments: 3,
		NumLocations:   2,
		NumReports:     2,
		ShouldClean:    true,
	}
	require.NoError(t, NewSeeder(db).Run(opts))

	var userCount, reviewerCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	require.NoError(t, db.Model(&models.User{}).Where("is_reviewer = ?", true).Count(&reviewerCount).Error)
	assert.Equal(t, int64(6), userCount)
	assert.Equal(t, int64(2), reviewerCount)

	var assessmentCount, sectionCount int64
	require.NoError(t, db.Model(&models.Assessment{}).Count(&assessmentCount).Error)
	require.NoError(t, db.Model(&models.SubSection{}).Count(&sectionCount).Error)
	assert.Equal(t, int64(3), assessmentCount)
	assert.GreaterOrEqual(t, sectionCount, int64(6))

	var locationCount, fireCount int64
	require.NoError(t, db.Model(&models.WarehouseLocation{}).Count(&locationCount).Error)
	require.NoError(t, db.Model(&models.FireSafetySection{}).Count(&fireCount).Error)
	assert.Equal(t, int64(2), locationCount)
	assert.GreaterOrEqual(t, fireCount, int64(2))

	var reportCount, submissionCount int64
	require.NoError(t, db.Model(&models.InspectionReport{}).Count(&reportCount).Error)
	require.NoError(t, db.Model(&models.Submission{}).Count(&submissionCount).Error)
	assert.Equal(t, int64(2), reportCount)
	assert.GreaterOrEqual(t, submissionCount, int64(4))
}

func TestSeederRunIsRepeatableWithClean(t *testing.T) {
	db := testutil.OpenTestDB(t)

	opts := DefaultOptions()
	opts.NumOperators = 2
	opts.NumReviewers = 1
	opts.NumAssessments = 1
	opts.NumLocations = 1
	opts.NumReports = 1

	require.NoError(t, NewSeeder(db).Run(opts))
	require.NoError(t, NewSeeder(db).Run(opts))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(3), userCount)
}
