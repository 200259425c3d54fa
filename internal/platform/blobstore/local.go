package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const metaSuffix = ".meta"

// LocalStore keeps blobs under a directory, with a JSON sidecar holding
// the Object metadata next to each file.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if necessary.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", abs, err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) pathFor(key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return full, nil
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, contentType string, maxSize int64) (*Object, error) {
	full, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := readLimited(r, maxSize)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	obj := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      fmt.Sprintf("%x", sha256.Sum256(data)),
		CreatedAt:   time.Now().UTC(),
	}
	meta, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode blob metadata: %w", err)
	}

	if err := os.WriteFile(full, data, 0o600); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := os.WriteFile(full+metaSuffix, meta, 0o600); err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("write blob metadata: %w", err)
	}
	return &obj, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	full, err := s.pathFor(key)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(full + metaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("read blob metadata: %w", err)
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("decode blob metadata: %w", err)
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), &obj, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	full, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); errors.Is(err, fs.ErrNotExist) {
		return ErrBlobNotFound
	} else if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := os.Remove(full + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob metadata: %w", err)
	}
	return nil
}
