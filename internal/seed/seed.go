// Package seed populates the database with development and demo data.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"warelic/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options controls how much data the seeder creates.
type Options struct {
	NumOperators   int
	NumReviewers   int
	NumAssessments int
	NumLocations   int
	NumReports     int
	ShouldClean    bool
}

// DefaultOptions is a small but usable development dataset.
func DefaultOptions() Options {
	return Options{
		NumOperators:   10,
		NumReviewers:   3,
		NumAssessments: 5,
		NumLocations:   8,
		NumReports:     6,
		ShouldClean:    true,
	}
}

// Seeder creates demo data for the licensing backend.
type Seeder struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewSeeder creates a new Seeder bound to the provided DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes every seeded row. Child tables go first because the schema
// carries no FK constraints to order the deletes for us.
func (s *Seeder) ClearAll() error {
	tables := []any{
		&models.Document{},
		&models.StagedDocument{},
		&models.AssessmentRequest{},
		&models.SectionRequest{},
		&models.ReportRequestItem{},
		&models.ReportRequest{},
		&models.FireSafetySectionHistory{},
		&models.StorageConditionSectionHistory{},
		&models.FireSafetySection{},
		&models.StorageConditionSection{},
		&models.WarehouseLocation{},
		&models.Submission{},
		&models.InspectionReport{},
		&models.SubSection{},
		&models.Assessment{},
		&models.User{},
	}
	for _, table := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
			return fmt.Errorf("clearing %T: %w", table, err)
		}
	}
	return nil
}

// Run seeds users, assessments, locations with checklists, and reports.
func (s *Seeder) Run(opts Options) error {
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}

	users, err := s.seedUsers(opts.NumOperators, opts.NumReviewers)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	log.Printf("seeded %d users", len(users))

	assessments, err := s.seedAssessments(opts.NumAssessments)
	if err != nil {
		return fmt.Errorf("seeding assessments: %w", err)
	}
	log.Printf("seeded %d assessments", len(assessments))

	locations, err := s.seedLocations(opts.NumLocations)
	if err != nil {
		return fmt.Errorf("seeding locations: %w", err)
	}
	log.Printf("seeded %d warehouse locations", len(locations))

	reports, err := s.seedReports(opts.NumReports)
	if err != nil {
		return fmt.Errorf("seeding reports: %w", err)
	}
	log.Printf("seeded %d inspection reports", len(reports))

	return nil
}

// seedUsers creates operator and reviewer accounts. All accounts share the
// password "password123".
func (s *Seeder) seedUsers(operators, reviewers int) ([]*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var users []*models.User
	for i := 0; i < operators+reviewers; i++ {
		name := gofakeit.Name()
		u := &models.User{
			Username:     fmt.Sprintf("%s%d", gofakeit.Username(), i),
			Email:        fmt.Sprintf("user%d@%s", i, gofakeit.DomainName()),
			PasswordHash: string(hash),
			FullName:     name,
			IsReviewer:   i >= operators,
		}
		if err := s.db.Create(u).Error; err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

var assessmentTopics = []string{
	"Fire Safety", "Cold Chain Compliance", "Hazardous Materials Handling",
	"Structural Integrity", "Security and Access Control", "Pest Control",
	"Electrical Systems", "Loading Bay Operations",
}

var methodologies = []string{"on-site", "remote", "hybrid", "document-review"}

func (s *Seeder) seedAssessments(n int) ([]*models.Assessment, error) {
	var assessments []*models.Assessment
	for i := 0; i < n && i < len(assessmentTopics); i++ {
		a := &models.Assessment{
			Name:        assessmentTopics[i],
			Description: gofakeit.Paragraph(1, 3, 8, " "),
			Methodology: methodologies[s.rand.Intn(len(methodologies))],
		}
		if err := s.db.Create(a).Error; err != nil {
			return nil, err
		}
		for j := 0; j < 2+s.rand.Intn(3); j++ {
			sec := &models.SubSection{
				AssessmentID: a.ID,
				Name:         fmt.Sprintf("%s %d", gofakeit.BuzzWord(), j+1),
				Content:      gofakeit.Paragraph(1, 2, 10, " "),
				Weight:       1 + s.rand.Intn(5),
			}
			if err := s.db.Create(sec).Error; err != nil {
				return nil, err
			}
		}
		assessments = append(assessments, a)
	}
	return assessments, nil
}

var fireCodes = []string{"EXT-01", "ALM-01", "SPR-01", "EXIT-01"}
var storageCodes = []string{"TEMP-01", "HUM-01", "RACK-01", "SEG-01"}

func (s *Seeder) seedLocations(n int) ([]*models.WarehouseLocation, error) {
	var locations []*models.WarehouseLocation
	statuses := []models.SectionReviewStatus{
		models.SectionReviewPending,
		models.SectionReviewAccepted,
		models.SectionReviewRejected,
	}
	for i := 0; i < n; i++ {
		loc := &models.WarehouseLocation{
			Code:         fmt.Sprintf("WH-%03d", i+1),
			Address:      gofakeit.Address().Address,
			OperatorName: gofakeit.Company(),
		}
		if err := s.db.Create(loc).Error; err != nil {
			return nil, err
		}

		for _, code := range fireCodes[:1+s.rand.Intn(len(fireCodes))] {
			status := statuses[s.rand.Intn(len(statuses))]
			sec := &models.FireSafetySection{
				LocationID:   loc.ID,
				Code:         code,
				Findings:     gofakeit.Sentence(10),
				Compliant:    s.rand.Intn(4) > 0,
				ReviewStatus: status,
			}
			if status == models.SectionReviewRejected {
				sec.ReviewNotes = gofakeit.Sentence(8)
			}
			if err := s.db.Create(sec).Error; err != nil {
				return nil, err
			}
		}
		for _, code := range storageCodes[:1+s.rand.Intn(len(storageCodes))] {
			sec := &models.StorageConditionSection{
				LocationID:   loc.ID,
				Code:         code,
				TemperatureC: -5 + s.rand.Float64()*25,
				HumidityPct:  30 + s.rand.Float64()*50,
				Condition:    gofakeit.Sentence(8),
				ReviewStatus: statuses[s.rand.Intn(len(statuses))],
			}
			if err := s.db.Create(sec).Error; err != nil {
				return nil, err
			}
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

var lineItems = []string{
	"Loading dock doors", "Emergency exits", "Sprinkler heads", "Racking anchors",
	"Forklift charging area", "Cold room seals", "Smoke detectors", "Perimeter fencing",
}

func (s *Seeder) seedReports(n int) ([]*models.InspectionReport, error) {
	var reports []*models.InspectionReport
	for i := 0; i < n; i++ {
		rep := &models.InspectionReport{
			Title:       fmt.Sprintf("%s Inspection %d", gofakeit.Company(), i+1),
			Inspector:   gofakeit.Name(),
			InspectedAt: gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()),
			Summary:     gofakeit.Paragraph(1, 2, 12, " "),
		}
		if err := s.db.Create(rep).Error; err != nil {
			return nil, err
		}
		for j := 0; j < 2+s.rand.Intn(4); j++ {
			result := "pass"
			notes := ""
			if s.rand.Intn(4) == 0 {
				result = "fail"
				notes = gofakeit.Sentence(6)
			}
			sub := &models.Submission{
				ReportID: rep.ID,
				LineNo:   j + 1,
				Item:     lineItems[s.rand.Intn(len(lineItems))],
				Result:   result,
				Notes:    notes,
			}
			if err := s.db.Create(sub).Error; err != nil {
				return nil, err
			}
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
