package storage

import (
	"fmt"
	"strings"
)

// Config selects and configures a BlobStore.
type Config struct {
	Type  StorageType
	Local LocalConfig
	S3    S3Config
}

// NewBlobStore creates a BlobStore based on the configuration.
// Parameters:
//   - cfg: storage configuration; "minio" is treated as S3-compatible.
// Returns:
//   - BlobStore: initialized storage implementation.
//   - error: non-nil if the storage cannot be created.
func NewBlobStore(cfg *Config) (BlobStore, error) {
	switch strings.ToLower(string(cfg.Type)) {
	case "", string(StorageTypeLocal):
		return NewLocalStorage(&cfg.Local)
	case "minio", string(StorageTypeS3Compatible):
		s3cfg := cfg.S3
		s3cfg.Type = StorageTypeS3Compatible
		return NewS3Storage(&s3cfg)
	case string(StorageTypeR2), string(StorageTypeS3):
		s3cfg := cfg.S3
		s3cfg.Type = cfg.Type
		if s3cfg.Endpoint != "" {
			s3cfg.Type = detectStorageType(s3cfg.Endpoint)
		}
		return NewS3Storage(&s3cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// detectStorageType infers the provider from the endpoint host.
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
