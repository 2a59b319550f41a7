package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/templui/imagevault/internal/metrics"
	"github.com/templui/imagevault/internal/model"
)

var (
	ErrImageNotFound = errors.New("image not found")
)

// ImageIndex is the metadata index of uploaded images.
// Every operation holds the index lock for its full duration, so Add is
// atomic with respect to other index operations in the same process.
type ImageIndex interface {
	// Load returns every record in insertion order
	Load() ([]model.ImageRecord, error)
	// Save replaces the whole index with records
	Save(records []model.ImageRecord) error
	// Add removes any record with the same id (case-insensitive) and appends record
	Add(record model.ImageRecord) error
	// Get returns the first record whose id matches case-insensitively
	Get(id string) (*model.ImageRecord, error)
}

// jsonImageIndex stores the index as one indented JSON array on disk.
type jsonImageIndex struct {
	path string
	mu   sync.Locker
}

// NewJSONImageIndex returns an index backed by the file at path.
// lock is shared by every index operation in the process.
func NewJSONImageIndex(path string, lock sync.Locker) *jsonImageIndex {
	return &jsonImageIndex{path: path, mu: lock}
}

// Path returns the index file location.
func (r *jsonImageIndex) Path() string {
	return r.path
}

func (r *jsonImageIndex) Load() ([]model.ImageRecord, error) {
	defer observe("load", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	records, _, err := r.read()
	return records, err
}

func (r *jsonImageIndex) Save(records []model.ImageRecord) error {
	defer observe("save", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.write(records)
}

func (r *jsonImageIndex) Add(record model.ImageRecord) error {
	defer observe("add", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	records, corrupt, err := r.read()
	if err != nil {
		return err
	}

	if corrupt != nil {
		r.backup(corrupt)
	}

	return r.write(replace(records, record))
}

func (r *jsonImageIndex) Get(id string) (*model.ImageRecord, error) {
	defer observe("get", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	records, _, err := r.read()
	if err != nil {
		return nil, err
	}

	for i := range records {
		if strings.EqualFold(records[i].ID, id) {
			return &records[i], nil
		}
	}

	return nil, ErrImageNotFound
}

// read loads the index. A missing or empty file is an empty index. An
// unparseable file is also treated as empty; its raw bytes are returned so
// the caller can preserve them before overwriting.
func (r *jsonImageIndex) read() ([]model.ImageRecord, []byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.ImageRecord{}, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read image index: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []model.ImageRecord{}, nil, nil
	}

	var records []model.ImageRecord
	err = json.Unmarshal(data, &records)
	if err != nil {
		metrics.IndexCorruptTotal.Inc()
		slog.Warn("image index is unreadable, treating it as empty", "path", r.path, "error", err)
		return []model.ImageRecord{}, data, nil
	}

	if records == nil {
		records = []model.ImageRecord{}
	}
	return records, nil, nil
}

func (r *jsonImageIndex) write(records []model.ImageRecord) error {
	if records == nil {
		records = []model.ImageRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode image index: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(r.path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	err = atomic.WriteFile(r.path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to write image index: %w", err)
	}

	metrics.IndexRecords.Set(float64(len(records)))
	return nil
}

// backup keeps the unreadable index next to the original before it is overwritten.
func (r *jsonImageIndex) backup(data []byte) {
	backupPath := r.path + ".corrupt"
	err := atomic.WriteFile(backupPath, bytes.NewReader(data))
	if err != nil {
		slog.Error("failed to back up unreadable image index", "error", err, "path", backupPath)
		return
	}
	slog.Warn("unreadable image index backed up before overwrite", "backup", backupPath)
}

// replace drops records whose id equals record.ID case-insensitively and appends record.
func replace(records []model.ImageRecord, record model.ImageRecord) []model.ImageRecord {
	kept := records[:0]
	for _, existing := range records {
		if !strings.EqualFold(existing.ID, record.ID) {
			kept = append(kept, existing)
		}
	}
	return append(kept, record)
}

func observe(operation string, start time.Time) {
	metrics.IndexOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
