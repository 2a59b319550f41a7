package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/imagevault/internal/config"
	"github.com/templui/imagevault/internal/model"
	"github.com/templui/imagevault/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dataDir := t.TempDir()
	imagesDir := filepath.Join(dataDir, "images")
	return &config.Config{
		AppEnv:         "production",
		AppURL:         "http://localhost:5080",
		DataDir:        dataDir,
		ConfigPath:     filepath.Join(dataDir, "config.json"),
		ImagesDir:      imagesDir,
		IndexPath:      filepath.Join(imagesDir, "index.json"),
		SessionSecret:  "secret",
		SessionExpiry:  time.Hour,
		StorageDriver:  "local",
		IndexDriver:    "json",
		SweepGrace:     time.Hour,
		AuthRateLimit:  20,
		AuthRateWindow: time.Minute,
	}
}

func TestNewWithJSONIndex(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Nil(t, a.DB)
	require.NotNil(t, a.Sweeper)
	assert.DirExists(t, cfg.ImagesDir)

	records, err := a.Index.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewWithSQLiteIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.IndexDriver = "sqlite"

	a, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	require.NotNil(t, a.DB)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "images.db"))

	require.NoError(t, a.Index.Add(model.ImageRecord{ID: "abc", UploadedAt: time.Now()}))
	got, err := a.Index.Get("ABC")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
}

func TestIndexConnection(t *testing.T) {
	cfg := testConfig(t)
	setup := service.NewSetupService(cfg.ConfigPath)

	cfg.IndexDriver = "pgx"
	_, err := indexConnection(cfg, setup)
	assert.Error(t, err)

	cfg.DBConnection = "postgres://localhost/vault"
	conn, err := indexConnection(cfg, setup)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/vault", conn)

	cfg.DBConnection = ""
	cfg.IndexDriver = "mysql"
	_, err = indexConnection(cfg, setup)
	assert.ErrorIs(t, err, service.ErrConfigMissing)

	require.NoError(t, os.WriteFile(cfg.ConfigPath, []byte(`{"dbHost":"db","dbName":"vault","dbUser":"me"}`), 0o644))
	conn, err = indexConnection(cfg, setup)
	require.NoError(t, err)
	assert.Contains(t, conn, "me@tcp(db:3306)/vault")

	cfg.IndexDriver = "oracle"
	_, err = indexConnection(cfg, setup)
	assert.Error(t, err)
}

func TestNewUnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = "ftp"

	_, err := New(cfg)
	assert.Error(t, err)
}
