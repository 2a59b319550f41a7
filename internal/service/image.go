package service

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/templui/imagevault/internal/metrics"
	"github.com/templui/imagevault/internal/model"
	"github.com/templui/imagevault/internal/repository"
	"github.com/templui/imagevault/internal/storage"
	"github.com/templui/imagevault/internal/thumb"
	"github.com/templui/imagevault/internal/validation"
	"golang.org/x/text/cases"
)

const (
	SearchLimit   = 10
	ThumbFilename = "thumb.jpg"
)

var (
	ErrImageNotFound = errors.New("image not found")
)

type ImageService struct {
	index       repository.ImageIndex
	storage     storage.Storage
	thumbs      *thumb.Generator
	constraints validation.FileConstraints
	now         func() time.Time
}

func NewImageService(index repository.ImageIndex, storage storage.Storage, thumbs *thumb.Generator) *ImageService {
	return &ImageService{
		index:       index,
		storage:     storage,
		thumbs:      thumbs,
		constraints: validation.ImageConstraints(0),
		now:         time.Now,
	}
}

// Upload stores the original, writes its thumbnail and commits the record to
// the index. Size and presence checks belong to the caller; the extension is
// checked again here so nothing is written for a disallowed file.
//
// The index add is the commit point. If anything fails before it, the files
// written so far are removed on a best-effort basis.
func (s *ImageService) Upload(file io.Reader, filename, contentType, description string) (*model.ImageRecord, error) {
	err := validation.ValidateExtension(filename, s.constraints)
	if err != nil {
		return nil, err
	}

	id, err := newImageID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate image id: %w", err)
	}

	counter := &countingReader{r: file}
	originalPath, err := s.storage.Save(id+"/original"+validation.Extension(filename), counter)
	if err != nil {
		return nil, fmt.Errorf("failed to save original: %w", err)
	}

	thumbPath, err := s.writeThumbnail(id, originalPath)
	if err != nil {
		s.cleanup(id, originalPath)
		return nil, err
	}

	if contentType == "" {
		contentType = model.DefaultContentType
	}

	record := model.ImageRecord{
		ID:                  id,
		Description:         description,
		OriginalPath:        originalPath,
		ThumbPath:           thumbPath,
		OriginalContentType: contentType,
		UploadedAt:          s.now().UTC(),
	}

	err = s.index.Add(record)
	if err != nil {
		s.cleanup(id, thumbPath, originalPath)
		return nil, fmt.Errorf("failed to add image to index: %w", err)
	}

	metrics.UploadBytes.Add(float64(counter.n))
	slog.Info("image uploaded", "image_id", id, "bytes", counter.n, "content_type", contentType)

	return &record, nil
}

// writeThumbnail reads the stored original back and saves a thumbnail next to it.
func (s *ImageService) writeThumbnail(id, originalPath string) (string, error) {
	start := time.Now()

	original, err := s.storage.Open(originalPath)
	if err != nil {
		return "", fmt.Errorf("failed to reopen original: %w", err)
	}
	defer func() {
		closeErr := original.Close()
		if closeErr != nil {
			slog.Warn("failed to close original", "error", closeErr, "image_id", id)
		}
	}()

	var buf bytes.Buffer
	_, err = s.thumbs.Generate(original, &buf)
	if err != nil {
		return "", err
	}
	metrics.ThumbnailDuration.Observe(time.Since(start).Seconds())

	thumbPath, err := s.storage.Save(id+"/"+ThumbFilename, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return thumbPath, nil
}

func (s *ImageService) cleanup(id string, locations ...string) {
	for _, location := range locations {
		err := s.storage.Delete(location)
		if err != nil {
			slog.Error("failed to clean up after failed upload", "error", err, "image_id", id, "location", location)
		}
	}
}

// Search returns at most SearchLimit records, newest first. A non-empty query
// keeps only records whose description contains it, ignoring case.
func (s *ImageService) Search(query string) ([]model.SearchResult, error) {
	records, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	query = strings.TrimSpace(query)
	if query != "" {
		fold := cases.Fold()
		needle := fold.String(query)
		records = lo.Filter(records, func(r model.ImageRecord, _ int) bool {
			return strings.Contains(fold.String(r.Description), needle)
		})
	}

	slices.SortStableFunc(records, func(a, b model.ImageRecord) int {
		return b.UploadedAt.Compare(a.UploadedAt)
	})

	if len(records) > SearchLimit {
		records = records[:SearchLimit]
	}

	results := lo.Map(records, func(r model.ImageRecord, _ int) model.SearchResult {
		return r.SearchResult()
	})
	metrics.SearchResults.Observe(float64(len(results)))

	return results, nil
}

func (s *ImageService) Get(id string) (*model.ImageRecord, error) {
	record, err := s.index.Get(id)
	if errors.Is(err, repository.ErrImageNotFound) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up image: %w", err)
	}
	return record, nil
}

// OpenThumb returns the thumbnail bytes of an image. The caller closes the reader.
func (s *ImageService) OpenThumb(id string) (io.ReadCloser, *model.ImageRecord, error) {
	return s.open(id, func(r *model.ImageRecord) string { return r.ThumbPath })
}

// OpenOriginal returns the original bytes of an image. The caller closes the reader.
func (s *ImageService) OpenOriginal(id string) (io.ReadCloser, *model.ImageRecord, error) {
	return s.open(id, func(r *model.ImageRecord) string { return r.OriginalPath })
}

func (s *ImageService) open(id string, location func(*model.ImageRecord) string) (io.ReadCloser, *model.ImageRecord, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.storage.Open(location(record))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		slog.Warn("indexed image file is missing", "image_id", record.ID, "location", location(record), "error", err)
		return nil, nil, ErrImageNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image file: %w", err)
	}

	return rc, record, nil
}

// MissingFile is an indexed file that can no longer be opened.
type MissingFile struct {
	ID       string
	Kind     string // "original" or "thumb"
	Location string
	Err      error
}

// Check opens every indexed file and reports the ones that are unreadable.
func (s *ImageService) Check() ([]MissingFile, error) {
	records, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	var missing []MissingFile
	for _, record := range records {
		for kind, location := range map[string]string{"original": record.OriginalPath, "thumb": record.ThumbPath} {
			rc, err := s.storage.Open(location)
			if err != nil {
				missing = append(missing, MissingFile{ID: record.ID, Kind: kind, Location: location, Err: err})
				continue
			}
			_ = rc.Close()
		}
	}

	slices.SortFunc(missing, func(a, b MissingFile) int {
		return strings.Compare(a.ID+a.Kind, b.ID+b.Kind)
	})
	return missing, nil
}

// RegenerateThumbnails rebuilds every thumbnail from its original. Records
// whose original cannot be read are logged and skipped.
func (s *ImageService) RegenerateThumbnails() (int, error) {
	records, err := s.index.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load index: %w", err)
	}

	regenerated := 0
	for _, record := range records {
		_, err := s.writeThumbnail(record.ID, record.OriginalPath)
		if err != nil {
			slog.Warn("failed to regenerate thumbnail", "error", err, "image_id", record.ID)
			continue
		}
		regenerated++
	}

	return regenerated, nil
}

// newImageID returns 128 random bits, hex encoded.
func newImageID() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
