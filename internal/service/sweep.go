package service

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/templui/imagevault/internal/metrics"
	"github.com/templui/imagevault/internal/repository"
	"github.com/templui/imagevault/internal/storage"
)

// OrphanSweeper removes image directories that no index record refers to.
// They are left behind when an upload dies between writing its files and
// committing the record. Directories younger than the grace period are
// skipped so in-flight uploads are never touched.
type OrphanSweeper struct {
	index    repository.ImageIndex
	storage  *storage.LocalStorage
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	started  bool
	done     chan struct{}
}

func NewOrphanSweeper(index repository.ImageIndex, storage *storage.LocalStorage, interval, grace time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		index:    index,
		storage:  storage,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. A zero interval disables it.
func (s *OrphanSweeper) Start() {
	s.started = true
	if s.interval <= 0 {
		close(s.done)
		return
	}
	slog.Info("orphan sweeper started", "interval", s.interval, "grace", s.grace)
	go s.sweepLoop()
}

// Stop ends the loop and waits for a running sweep to finish.
func (s *OrphanSweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	if s.started {
		<-s.done
	}
}

func (s *OrphanSweeper) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, err := s.SweepOnce(s.grace, false)
			if err != nil {
				slog.Error("orphan sweep failed", "error", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// SweepOnce removes unreferenced directories older than grace and returns
// their names. With dryRun set nothing is removed.
//
// An empty index next to existing directories is treated as a damaged index
// and nothing is swept.
func (s *OrphanSweeper) SweepOnce(grace time.Duration, dryRun bool) ([]string, error) {
	records, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	dirs, err := s.storage.Dirs()
	if err != nil {
		return nil, fmt.Errorf("failed to list image directories: %w", err)
	}

	if len(records) == 0 && len(dirs) > 0 {
		slog.Warn("index is empty but image directories exist, skipping sweep", "directories", len(dirs))
		return nil, nil
	}

	referenced := make(map[string]bool, len(records))
	for _, record := range records {
		referenced[strings.ToLower(record.ID)] = true
	}

	cutoff := s.now().Add(-grace)
	var removed []string
	for _, dir := range dirs {
		if referenced[strings.ToLower(dir.Name)] || dir.ModTime.After(cutoff) {
			continue
		}

		if dryRun {
			slog.Info("orphaned image directory", "name", dir.Name, "modified", dir.ModTime)
			removed = append(removed, dir.Name)
			continue
		}

		err := s.storage.RemoveDir(dir.Name)
		if err != nil {
			slog.Error("failed to remove orphaned image directory", "error", err, "name", dir.Name)
			continue
		}
		metrics.OrphansRemovedTotal.Inc()
		slog.Info("removed orphaned image directory", "name", dir.Name, "modified", dir.ModTime)
		removed = append(removed, dir.Name)
	}

	return removed, nil
}
