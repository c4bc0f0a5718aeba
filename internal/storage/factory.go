package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/imagelens/internal/config"
)

// NewStorage creates the ObjectStorage selected by cfg.Type.
// Parameters:
//   - cfg: storage section of the application config.
// Returns:
//   - ObjectStorage: initialized backend.
//   - error: non-nil if the backend cannot be created.
func NewStorage(cfg *config.StorageConfig) (ObjectStorage, error) {
	switch StorageType(strings.ToLower(cfg.Type)) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir, cfg.PublicURL)
	case "":
		return NewS3Storage(s3ConfigFrom(cfg, detectStorageType(cfg.Endpoint)))
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		return NewS3Storage(s3ConfigFrom(cfg, StorageType(strings.ToLower(cfg.Type))))
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

func s3ConfigFrom(cfg *config.StorageConfig, t StorageType) *S3Config {
	return &S3Config{
		Type:      t,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
	}
}

// detectStorageType guesses the provider from the endpoint host.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
