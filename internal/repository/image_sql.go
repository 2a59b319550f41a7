package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/imagevault/internal/model"
)

const imageColumns = `id, description, original_path, thumb_path, original_content_type, uploaded_at`

// sqlImageIndex keeps the index in the images table. The seq column
// preserves insertion order; replace semantics match the JSON index.
type sqlImageIndex struct {
	db *sqlx.DB
	mu sync.Locker
}

func NewSQLImageIndex(db *sqlx.DB, lock sync.Locker) *sqlImageIndex {
	return &sqlImageIndex{db: db, mu: lock}
}

func (r *sqlImageIndex) Load() ([]model.ImageRecord, error) {
	defer observe("load", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	records := []model.ImageRecord{}
	query := `SELECT ` + imageColumns + ` FROM images ORDER BY seq`

	err := r.db.Select(&records, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	for i := range records {
		records[i].UploadedAt = records[i].UploadedAt.UTC()
	}
	return records, nil
}

func (r *sqlImageIndex) Save(records []model.ImageRecord) error {
	defer observe("save", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`DELETE FROM images`)
	if err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}

	for i, record := range records {
		err = r.insert(tx, record, int64(i+1))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *sqlImageIndex) Add(record model.ImageRecord) error {
	defer observe("add", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(tx.Rebind(`DELETE FROM images WHERE LOWER(id) = LOWER(?)`), record.ID)
	if err != nil {
		return fmt.Errorf("failed to remove previous image: %w", err)
	}

	var next int64
	err = tx.Get(&next, `SELECT COALESCE(MAX(seq), 0) + 1 FROM images`)
	if err != nil {
		return fmt.Errorf("failed to compute image sequence: %w", err)
	}

	err = r.insert(tx, record, next)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqlImageIndex) Get(id string) (*model.ImageRecord, error) {
	defer observe("get", time.Now())
	r.mu.Lock()
	defer r.mu.Unlock()

	record := &model.ImageRecord{}
	query := r.db.Rebind(`SELECT ` + imageColumns + ` FROM images WHERE LOWER(id) = LOWER(?) ORDER BY seq LIMIT 1`)

	err := r.db.Get(record, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	record.UploadedAt = record.UploadedAt.UTC()
	return record, nil
}

func (r *sqlImageIndex) insert(tx *sqlx.Tx, record model.ImageRecord, seq int64) error {
	query := tx.Rebind(`INSERT INTO images (id, seq, description, original_path, thumb_path, original_content_type, uploaded_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := tx.Exec(query,
		record.ID,
		seq,
		record.Description,
		record.OriginalPath,
		record.ThumbPath,
		record.OriginalContentType,
		record.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert image %s: %w", record.ID, err)
	}
	return nil
}
