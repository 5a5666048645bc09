// Package server initializes and runs the versioning-manager server: it
// opens the database, runs migrations, bootstraps the admin account and
// starts the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/versiman/internal/logging"
	"github.com/dmitrijs2005/versiman/internal/server/apikey"
	"github.com/dmitrijs2005/versiman/internal/server/compose"
	"github.com/dmitrijs2005/versiman/internal/server/config"
	"github.com/dmitrijs2005/versiman/internal/server/crypt"
	"github.com/dmitrijs2005/versiman/internal/server/hash"
	"github.com/dmitrijs2005/versiman/internal/server/httpapi"
	"github.com/dmitrijs2005/versiman/internal/server/registry"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/versiman/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.HTTPServer
	users  *services.UserService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	c, err := crypt.New(cfg.CryptKeyFilePath, cfg.CryptIVFilePath, cfg.ApiKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("crypt init error: %w", err)
	}

	processor := apikey.NewProcessor(c)
	hasher := hash.New()
	validator := apikey.NewValidator(processor, repos.Devices(db), hasher)

	var archives services.ArchiveStore
	if cfg.S3BaseEndpoint != "" {
		cache, err := registry.NewArchiveCache(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("archive cache init error: %w", err)
		}
		archives = cache
	}

	secret := []byte(cfg.SecretKey)
	userService := services.NewUserService(db, repos, hasher, secret, cfg.AccessTokenValidityDuration, logger)
	deviceService := services.NewDeviceService(db, repos, processor, hasher)
	projectService := services.NewProjectService(db, repos)
	imageService := services.NewImageService(db, repos, registry.NewDockerCLI(logger),
		compose.NewMerger(), archives, cfg.RegistryTimeout, logger)

	server := httpapi.NewHTTPServer(cfg.EndpointAddr, cfg.ApiKeyHeader, secret, validator,
		userService, deviceService, projectService, imageService, logger)

	return &App{config: cfg, logger: logger, db: db, server: server, users: userService}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.users.EnsureDefaultAdmin(ctx, app.config.DefaultAdminUsername, app.config.DefaultAdminPassword); err != nil {
		app.logger.Error(ctx, "admin bootstrap failed", "error", err)
		return
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
