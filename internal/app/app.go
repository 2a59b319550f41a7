package app

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/templui/imagevault/internal/config"
	"github.com/templui/imagevault/internal/db"
	"github.com/templui/imagevault/internal/repository"
	"github.com/templui/imagevault/internal/service"
	"github.com/templui/imagevault/internal/storage"
	"github.com/templui/imagevault/internal/thumb"
)

type App struct {
	Cfg          *config.Config
	DB           *sqlx.DB // nil with the JSON index
	Index        repository.ImageIndex
	Storage      storage.Storage
	AuthService  *service.AuthService
	SetupService *service.SetupService
	ImageService *service.ImageService
	Sweeper      *service.OrphanSweeper // nil unless storage is local
}

func New(cfg *config.Config) (*App, error) {
	setupService := service.NewSetupService(cfg.ConfigPath)

	// One lock serialises every index operation in the process
	indexLock := &sync.Mutex{}

	index, database, err := newIndex(cfg, setupService, indexLock)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image index: %w", err)
	}

	// Storage
	fileStorage, err := storage.New(cfg)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Services
	authService := service.NewAuthService(cfg.SessionSecret, cfg.SessionExpiry, cfg.SecureCookies())
	imageService := service.NewImageService(index, fileStorage, thumb.NewGenerator())

	var sweeper *service.OrphanSweeper
	if local, ok := fileStorage.(*storage.LocalStorage); ok {
		sweeper = service.NewOrphanSweeper(index, local, cfg.SweepInterval, cfg.SweepGrace)
	} else if cfg.SweepInterval > 0 {
		slog.Warn("orphan sweeper only supports local storage, disabled", "storage_driver", cfg.StorageDriver)
	}

	return &App{
		Cfg:          cfg,
		DB:           database,
		Index:        index,
		Storage:      fileStorage,
		AuthService:  authService,
		SetupService: setupService,
		ImageService: imageService,
		Sweeper:      sweeper,
	}, nil
}

// newIndex builds the metadata index selected by INDEX_DRIVER. SQL backends
// are migrated before use.
func newIndex(cfg *config.Config, setup *service.SetupService, lock sync.Locker) (repository.ImageIndex, *sqlx.DB, error) {
	if cfg.IndexDriver == "" || cfg.IndexDriver == "json" {
		slog.Info("using JSON image index", "path", cfg.IndexPath)
		return repository.NewJSONImageIndex(cfg.IndexPath, lock), nil, nil
	}

	connection, err := indexConnection(cfg, setup)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Init(cfg.IndexDriver, connection)
	if err != nil {
		return nil, nil, err
	}

	err = db.RunMigrations(database.DB, cfg.IndexDriver)
	if err != nil {
		_ = db.Close(database)
		return nil, nil, err
	}

	return repository.NewSQLImageIndex(database, lock), database, nil
}

// indexConnection resolves the DSN for a SQL index. SQLite defaults to a file
// in the data directory; MySQL falls back to the settings from first-run setup.
func indexConnection(cfg *config.Config, setup *service.SetupService) (string, error) {
	if cfg.DBConnection != "" {
		return cfg.DBConnection, nil
	}

	switch cfg.IndexDriver {
	case "sqlite":
		return db.SQLiteConnection(filepath.Join(cfg.DataDir, "images.db")), nil
	case "mysql":
		appConfig, err := setup.Load()
		if err != nil {
			return "", fmt.Errorf("DB_CONNECTION is empty and setup config is unavailable: %w", err)
		}
		if !appConfig.IsComplete() {
			return "", errors.New("DB_CONNECTION is empty and setup config is incomplete")
		}
		return appConfig.DSN(), nil
	case "pgx":
		return "", errors.New("DB_CONNECTION is required for the pgx index driver")
	default:
		return "", fmt.Errorf("unknown index driver %q", cfg.IndexDriver)
	}
}

func (a *App) Close() error {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	return db.Close(a.DB)
}
