// Package blobstore stores uploaded skin images. Backends share the Store
// interface: in-memory for tests, the local filesystem for development and
// S3 for deployments.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrEmptyFile          = errors.New("file is empty")
	ErrInvalidKey         = errors.New("invalid blob key")
)

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	// Put reads r to EOF, refusing more than maxSize bytes.
	Put(ctx context.Context, key string, r io.Reader, contentType string, maxSize int64) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

// ValidateImage accepts any image/* media type, ignoring parameters.
func ValidateImage(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	return nil
}

// ImageKey builds the storage key for a user's upload, keeping only the
// original file extension.
func ImageKey(userID uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return fmt.Sprintf("diagnoses/%s/%s%s", userID, uuid.New(), ext)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
