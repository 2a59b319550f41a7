package model

import (
	"time"
)

const (
	DefaultContentType = "application/octet-stream"
	ThumbContentType   = "image/jpeg"
)

// ImageRecord is one uploaded image in the metadata index.
// ID, OriginalPath and ThumbPath never change once the record exists.
type ImageRecord struct {
	ID                  string    `json:"id" db:"id"`
	Description         string    `json:"description" db:"description"`
	OriginalPath        string    `json:"originalPath" db:"original_path"` // storage location of the uploaded bytes
	ThumbPath           string    `json:"thumbPath" db:"thumb_path"`
	OriginalContentType string    `json:"originalContentType" db:"original_content_type"`
	UploadedAt          time.Time `json:"uploadedAt" db:"uploaded_at"` // UTC
}

// ThumbURL is the API path clients use to fetch the thumbnail.
func (r *ImageRecord) ThumbURL() string {
	return "/api/images/" + r.ID + "/thumb"
}

// ContentType returns the stored content type, or the generic binary type when unknown.
func (r *ImageRecord) ContentType() string {
	if r.OriginalContentType == "" {
		return DefaultContentType
	}
	return r.OriginalContentType
}

// SearchResult is the public view of a record. It never exposes storage paths.
type SearchResult struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	ThumbURL    string `json:"thumbUrl"`
}

func (r *ImageRecord) SearchResult() SearchResult {
	return SearchResult{
		ID:          r.ID,
		Description: r.Description,
		ThumbURL:    r.ThumbURL(),
	}
}
