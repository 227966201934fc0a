package storage

import (
	"fmt"

	"github.com/emily-flambe/list-cutter-sub018/pkg/config"
)

// New builds an ObjectStore from one store block of the configuration.
func New(cfg config.StoreConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		if cfg.Endpoint == "" || cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 endpoint and bucket are required")
		}
		return NewS3(cfg.Endpoint, cfg.Region, cfg.Bucket, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL)
	case "local":
		if cfg.Path == "" {
			return nil, fmt.Errorf("local path is required")
		}
		return NewLocal(cfg.Path), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
