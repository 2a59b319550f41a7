package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/templui/imagevault/internal/model"
)

var (
	ErrSetupIncomplete = errors.New("setup is incomplete")
	ErrConfigMissing   = errors.New("config.json not found")
	ErrConfigInvalid   = errors.New("invalid JSON in config.json")
)

// SetupStatus is the first-run setup state reported to clients.
type SetupStatus struct {
	Present  bool   `json:"present"`
	Complete bool   `json:"complete"`
	Error    string `json:"error,omitempty"`
}

// SetupService persists the first-run database settings.
// The settings gate login; nothing connects to that database.
type SetupService struct {
	path string
}

func NewSetupService(path string) *SetupService {
	return &SetupService{path: path}
}

func (s *SetupService) Path() string {
	return s.path
}

// Load reads config.json. It returns ErrConfigMissing when the file does not
// exist and ErrConfigInvalid when it cannot be parsed.
func (s *SetupService) Load() (*model.AppConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := model.NewAppConfig()
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return cfg, nil
}

func (s *SetupService) Status() SetupStatus {
	cfg, err := s.Load()
	switch {
	case errors.Is(err, ErrConfigMissing):
		return SetupStatus{}
	case errors.Is(err, ErrConfigInvalid):
		slog.Warn("invalid JSON in config file", "path", s.path, "error", err)
		return SetupStatus{Present: true, Error: "Invalid JSON in config.json"}
	case err != nil:
		slog.Error("failed to read config file", "path", s.path, "error", err)
		return SetupStatus{Present: true, Error: "Unreadable config.json"}
	}

	return SetupStatus{Present: true, Complete: cfg.IsComplete()}
}

// Save writes cfg as indented JSON, replacing the file atomically.
func (s *SetupService) Save(cfg *model.AppConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(s.path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	err = atomic.WriteFile(s.path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	slog.Info("setup config saved", "path", s.path, "complete", cfg.IsComplete())
	return nil
}

// LoginAllowed returns ErrSetupIncomplete unless config.json exists, parses
// and is complete.
func (s *SetupService) LoginAllowed() error {
	cfg, err := s.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetupIncomplete, err)
	}
	if !cfg.IsComplete() {
		return ErrSetupIncomplete
	}
	return nil
}
