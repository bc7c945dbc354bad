package database

import "warelic/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Assessment{},
		&models.SubSection{},
		&models.InspectionReport{},
		&models.Submission{},
		&models.AssessmentRequest{},
		&models.SectionRequest{},
		&models.ReportRequest{},
		&models.ReportRequestItem{},
		&models.StagedDocument{},
		&models.Document{},
		&models.WarehouseLocation{},
		&models.FireSafetySection{},
		&models.FireSafetySectionHistory{},
		&models.StorageConditionSection{},
		&models.StorageConditionSectionHistory{},
	}
}
