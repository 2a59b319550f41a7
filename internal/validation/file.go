package validation

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var (
	ErrFileRequired     = errors.New("file is required")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidExtension = errors.New("invalid file extension")
)

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	AllowedExtensions map[string]bool
	MaxSize           int64 // 0 disables the size check
}

// ImageConstraints returns the rules for image uploads with the given size cap.
func ImageConstraints(maxSize int64) FileConstraints {
	return FileConstraints{
		AllowedExtensions: map[string]bool{
			".jpg":  true,
			".jpeg": true,
			".png":  true,
			".webp": true,
			".gif":  true,
		},
		MaxSize: maxSize,
	}
}

// ValidateFile checks a multipart upload against the constraints.
// Nothing is read from the file; only the header is inspected.
func ValidateFile(header *multipart.FileHeader, constraints FileConstraints) error {
	if header == nil || header.Size == 0 {
		return ErrFileRequired
	}

	if constraints.MaxSize > 0 && header.Size > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, maxMB)
	}

	return ValidateExtension(header.Filename, constraints)
}

// ValidateExtension checks the filename extension case-insensitively.
func ValidateExtension(filename string, constraints FileConstraints) error {
	ext := Extension(filename)
	if ext == "" {
		return fmt.Errorf("%w: missing extension", ErrInvalidExtension)
	}
	if !constraints.AllowedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
	}
	return nil
}

// Extension returns the lower-cased extension of filename including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
