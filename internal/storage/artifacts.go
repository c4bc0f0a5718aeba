package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ArtifactStore saves uploaded files under fresh keys and reads them back.
// It is the storage collaborator consumed by the analysis service.
type ArtifactStore struct {
	backend ObjectStorage
	prefix  string
}

// NewArtifactStore wraps backend; keys are created under prefix.
func NewArtifactStore(backend ObjectStorage, prefix string) *ArtifactStore {
	return &ArtifactStore{
		backend: backend,
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Save stores data under a new unique key and returns that key. The content
// type is sniffed from the bytes; the extension comes from filename when it
// has one, otherwise from the sniffed type.
func (a *ArtifactStore) Save(ctx context.Context, data []byte, filename string) (string, error) {
	mtype := mimetype.Detect(data)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = mtype.Extension()
	}

	key := uuid.New().String() + ext
	if a.prefix != "" {
		key = path.Join(a.prefix, key)
	}

	if err := a.backend.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mtype.String()); err != nil {
		return "", fmt.Errorf("failed to save artifact: %w", err)
	}
	return key, nil
}

// Read returns the full contents stored under key.
func (a *ArtifactStore) Read(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.backend.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the artifact stored under key. A missing key is not an error.
func (a *ArtifactStore) Delete(ctx context.Context, key string) error {
	if err := a.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", key, err)
	}
	return nil
}

// Ping checks that the backend answers a lookup. Whether the looked-up key
// exists does not matter, only that the backend could be asked.
func (a *ArtifactStore) Ping(ctx context.Context) error {
	_, err := a.backend.Exists(ctx, path.Join(a.prefix, ".ping"))
	return err
}

// URL returns the public URL of a stored artifact.
func (a *ArtifactStore) URL(key string) string {
	return a.backend.GetURL(key)
}

// DetectContentType returns the sniffed MIME type of data.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
