// Command seed populates the database with development data.
package main

import (
	"flag"
	"log"

	"warelic/internal/config"
	"warelic/internal/database"
	"warelic/internal/seed"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.NumOperators, "operators", opts.NumOperators, "Number of operator accounts to create")
	flag.IntVar(&opts.NumReviewers, "reviewers", opts.NumReviewers, "Number of reviewer accounts to create")
	flag.IntVar(&opts.NumAssessments, "assessments", opts.NumAssessments, "Number of assessments to create")
	flag.IntVar(&opts.NumLocations, "locations", opts.NumLocations, "Number of warehouse locations to create")
	flag.IntVar(&opts.NumReports, "reports", opts.NumReports, "Number of inspection reports to create")
	flag.BoolVar(&opts.ShouldClean, "clean", opts.ShouldClean, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.NewSeeder(db).Run(opts); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Done. All seeded accounts use the password: password123")
}
