package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/slonweiss/node-proxy/internal/config"
	"github.com/slonweiss/node-proxy/internal/db"
	"github.com/slonweiss/node-proxy/internal/repository"
	"github.com/slonweiss/node-proxy/internal/service"
	"github.com/slonweiss/node-proxy/internal/storage"
)

type App struct {
	Cfg                *config.Config
	DB                 *sqlx.DB
	ImageRepository    repository.ImageRepository
	FeedbackRepository repository.FeedbackRepository
	IngestService      *service.IngestService
	FeedbackService    *service.FeedbackService
	AuthService        *service.AuthService
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	imageRepository := repository.NewImageRepository(database)
	feedbackRepository := repository.NewFeedbackRepository(database)

	// Storage
	blobStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Services
	ingestService := service.NewIngestService(
		imageRepository,
		blobStorage,
		service.NewDimensionExtractor(),
		cfg.S3KeyPrefix,
	)
	feedbackService := service.NewFeedbackService(feedbackRepository)
	authService := service.NewAuthService(cfg.JWTSecret)

	return &App{
		Cfg:                cfg,
		DB:                 database,
		ImageRepository:    imageRepository,
		FeedbackRepository: feedbackRepository,
		IngestService:      ingestService,
		FeedbackService:    feedbackService,
		AuthService:        authService,
	}, nil
}

func (a *App) Close() error {
	return db.Close(a.DB)
}
