package app

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/aggregator"
	"github.com/varoOP/shinkrosrc/internal/config"
	"github.com/varoOP/shinkrosrc/internal/database"
	"github.com/varoOP/shinkrosrc/internal/discovery"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/generator"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
	"github.com/varoOP/shinkrosrc/internal/logger"
	"github.com/varoOP/shinkrosrc/internal/mal"
	"github.com/varoOP/shinkrosrc/internal/notification"
	"github.com/varoOP/shinkrosrc/internal/orchestrator"
	"github.com/varoOP/shinkrosrc/internal/probe"
	"github.com/varoOP/shinkrosrc/internal/repository"
	"github.com/varoOP/shinkrosrc/internal/validator"
)

// App represents the main application with all dependencies initialized
type App struct {
	log                 zerolog.Logger
	config              *domain.Config
	paths               *domain.Paths
	client              *retryablehttp.Client
	db                  *database.DB
	providerRepo        domain.ProviderRepository
	historyRepo         domain.HistoryRepo
	validatorService    validator.Service
	orchestratorService orchestrator.Service
	notificationService domain.NotificationService
}

// NewApp loads the configuration and initializes every dependency
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(logger.NewLoggerWithLevel(cfg.LogLevel), cfg)
}

// New initializes the application for an already loaded configuration
func New(log zerolog.Logger, cfg *domain.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", cfg.DataDir, err)
	}

	paths := domain.NewPaths(cfg.DataDir)

	db, err := database.NewDB(cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	client := httpclient.New(log, config.HTTPOptions(cfg))
	providerRepo := repository.NewFileRepository(log, paths)
	historyRepo := database.NewHistoryRepo(log, db)
	notificationService := notification.NewService(log, cfg.DiscordWebhookURL)
	validatorService := validator.NewService(log, client)

	orchestratorService := orchestrator.NewService(
		log,
		probe.NewService(log, client, cfg.ProbeTimeout, cfg.UserAgent),
		discovery.NewService(log, client),
		generator.New(log, nil),
		validatorService,
		providerRepo,
		historyRepo,
		notificationService,
		cfg.AnalysisTimeout,
	)

	return &App{
		log:                 log,
		config:              cfg,
		paths:               paths,
		client:              client,
		db:                  db,
		providerRepo:        providerRepo,
		historyRepo:         historyRepo,
		validatorService:    validatorService,
		orchestratorService: orchestratorService,
		notificationService: notificationService,
	}, nil
}

// Close releases the history database
func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) Log() zerolog.Logger { return a.log }

func (a *App) Providers() domain.ProviderRepository { return a.providerRepo }

// Analyze runs the analysis pipeline for url
func (a *App) Analyze(ctx context.Context, url string, opts orchestrator.Options) (*orchestrator.Result, error) {
	return a.orchestratorService.Analyze(ctx, url, opts)
}

// Validate runs the validator against a stored config. A passing custom config
// is saved again with its new validation timestamp.
func (a *App) Validate(ctx context.Context, slug string) (*domain.ValidationResult, error) {
	cfg, err := a.providerRepo.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	res, err := a.validatorService.Validate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if res.IsValid && !cfg.BuiltIn {
		if err := a.providerRepo.Save(ctx, cfg); err != nil {
			return res, fmt.Errorf("failed to store validation timestamp: %w", err)
		}
	}
	return res, nil
}

// Catalog returns the aggregated catalog for content type t
func (a *App) Catalog(t domain.ContentType) (domain.Catalog, error) {
	if t != domain.ContentAnime && t != domain.ContentManga {
		return nil, fmt.Errorf("catalog type must be anime or manga, got %s", t)
	}

	var builtin domain.Catalog
	if a.config.MalClientID != "" {
		c, err := mal.NewCatalog(a.log, t, mal.Options{
			ClientID: a.config.MalClientID,
			Limit:    a.config.PageSize,
			HTTP:     config.HTTPOptions(a.config),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create built-in catalog: %w", err)
		}
		builtin = c
	} else {
		a.log.Debug().Msg("mal_client_id not set, built-in catalog disabled")
	}

	return aggregator.New(a.log, t, builtin, a.providerRepo, a.client, nil), nil
}

// History returns the most recent analysis runs
func (a *App) History(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	return a.historyRepo.List(ctx, limit)
}
