// Package server contains the HTTP handlers for the licensing API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"warelic/internal/cache"
	"warelic/internal/config"
	"warelic/internal/database"
	"warelic/internal/middleware"
	"warelic/internal/models"
	"warelic/internal/observability"
	"warelic/internal/repository"
	"warelic/internal/scanner"
	"warelic/internal/service"
	"warelic/internal/storage"
	"warelic/internal/vault"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	app    *fiber.App
	prom   *fiberprometheus.FiberPrometheus
	store  *storage.Store

	userRepo     repository.UserRepository
	documentRepo repository.DocumentRepository

	assessmentRequests *service.AssessmentRequestService
	sectionRequests    *service.SectionRequestService
	reportRequests     *service.ReportRequestService
	checklists         *service.ChecklistService
	documents          *service.DocumentService
}

// NewServer creates a new server instance with all dependencies.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	v, err := vault.New(cfg.FileEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("vault init failed: %w", err)
	}

	var scn scanner.Scanner
	if cfg.ScanEndpoint != "" {
		scn = scanner.NewHTTPScanner(cfg.ScanEndpoint)
	}
	store, err := storage.New(v, storage.Options{
		StagingDir:     cfg.StagingDir,
		CanonicalDir:   cfg.CanonicalDir,
		MaxUploadBytes: int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
		Scanner:        scn,
		ScanMode:       scanner.Mode(cfg.ScanMode),
	})
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis/storage.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store *storage.Store) (*Server, error) {
	middleware.InitMiddleware(cfg)

	userRepo := repository.NewUserRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	checklistRepo := repository.NewChecklistRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        redisClient,
		prom:         fiberprometheus.New("warelic-api"),
		store:        store,
		userRepo:     userRepo,
		documentRepo: documentRepo,
	}
	s.assessmentRequests = service.NewAssessmentRequestService(db,
		repository.NewAssessmentRequestRepository(db), assessmentRepo, documentRepo, userRepo, store)
	s.sectionRequests = service.NewSectionRequestService(db,
		repository.NewSectionRequestRepository(db), assessmentRepo, documentRepo, userRepo, store)
	s.reportRequests = service.NewReportRequestService(db,
		repository.NewReportRequestRepository(db), reportRepo, documentRepo, userRepo, store)
	s.checklists = service.NewChecklistService(db, checklistRepo, documentRepo, userRepo, store, nil)
	s.documents = service.NewDocumentService(documentRepo, store)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.prom != nil {
		app.Use(s.prom.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
	}

	// Everything below requires a valid token from the identity service.
	protected := api.Group("", middleware.AuthRequired)

	// Assessment change requests
	assessmentRequests := protected.Group("/assessments/requests")
	assessmentRequests.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "submit_assessment_request"), s.SubmitAssessmentRequest)
	assessmentRequests.Get("/", s.ListAssessmentRequests)
	assessmentRequests.Put("/:id/review", s.ReviewAssessmentRequest)
	assessmentRequests.Get("/:id/documents/:slot/download", s.DownloadAssessmentRequestDocument)
	assessmentRequests.Delete("/:id", s.WithdrawAssessmentRequest)
	assessmentRequests.Get("/:id", s.GetAssessmentRequest)

	// Sub-section change requests
	sectionRequests := protected.Group("/sections/requests")
	sectionRequests.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "submit_section_request"), s.SubmitSectionRequest)
	sectionRequests.Get("/", s.ListSectionRequests)
	sectionRequests.Put("/:id/review", s.ReviewSectionRequest)
	sectionRequests.Get("/:id/documents/:slot/download", s.DownloadSectionRequestDocument)
	sectionRequests.Delete("/:id", s.WithdrawSectionRequest)
	sectionRequests.Get("/:id", s.GetSectionRequest)

	// Inspection report change requests
	reportRequests := protected.Group("/reports/requests")
	reportRequests.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "submit_report_request"), s.SubmitReportRequest)
	reportRequests.Get("/", s.ListReportRequests)
	reportRequests.Put("/:id/review", s.ReviewReportRequest)
	reportRequests.Get("/:id/documents/:slot/download", s.DownloadReportRequestDocument)
	reportRequests.Delete("/:id", s.WithdrawReportRequest)
	reportRequests.Get("/:id", s.GetReportRequest)

	// Warehouse locations and safety checklists
	locations := protected.Group("/locations")
	locations.Post("/", s.CreateLocation)
	locations.Get("/", s.ListLocations)
	locations.Get("/:id/checklist", s.GetChecklist)
	locations.Put("/:id/checklist", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "resubmit_checklist"), s.ResubmitChecklist)
	locations.Put("/:id/checklist/review", s.ReviewChecklistSection)
	locations.Get("/:id/checklist/:sectionType/:code/history", s.GetSectionHistory)

	// Canonical documents on approved aggregates
	documents := protected.Group("/documents")
	documents.Get("/:ownerType/:ownerId", s.ListOwnerDocuments)
	documents.Get("/:ownerType/:ownerId/:slot/download", s.DownloadOwnerDocument)
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: the app
// degrades to uncached reads without it, so only the database gates readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start runs the startup reconciliation sweep and begins serving.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Warehouse Licensing API",
		BodyLimit: (s.config.MaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Finish document promotions interrupted by a crash between commit and rename.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	finished, err := s.store.Reconcile(ctx, s.db)
	if err != nil {
		return fmt.Errorf("document reconciliation failed: %w", err)
	}
	if finished > 0 {
		observability.MovesReconciled.Add(float64(finished))
		log.Printf("Reconciled %d interrupted document promotions", finished)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
