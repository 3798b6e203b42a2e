package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	JWT_SECRET - Enables JWT bearer authentication when set
//
// Storage:
//
//	STORAGE_URL - Content storage connection string (one of):
//	              - "memory://" - In-memory storage (default)
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket?region=us-east-1" - S3 storage
//
// Use programmatic options for anything beyond that.
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "JWT_SECRET"); ok && v != "" {
			c.JWTSecret = v
		}
		return applyStorageEnv(prefix, c)
	}
}

// applyStorageEnv applies content storage configuration from environment.
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, _ := lookupEnv(prefix, "STORAGE_URL")
	return applyStorageURL(storageURL, c)
}

// WithStorageURL configures content storage from a connection string using
// the same schemes as the STORAGE_URL environment variable.
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		return applyStorageURL(url, c)
	}
}

func applyStorageURL(storageURL string, c *ServerConfig) error {
	if storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.DefaultStorageBackend = "memory"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   "memory",
			Type:   "memory",
			Config: map[string]interface{}{},
		})
		return nil
	}

	switch {
	case strings.HasPrefix(storageURL, "file://"):
		return applyFilesystemStorage(storageURL, c)
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	}
	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from a URL of the form
// file:///path/to/data.
func applyFilesystemStorage(url string, c *ServerConfig) error {
	path := strings.TrimPrefix(url, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.DefaultStorageBackend = "fs"
	c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
		Name: "fs",
		Type: "fs",
		Config: map[string]interface{}{
			"base_dir": path,
		},
	})
	return nil
}

// applyS3Storage configures S3 storage from a URL of the form
// s3://bucket?region=us-east-1&endpoint=http://localhost:9000.
func applyS3Storage(storageURL string, c *ServerConfig) error {
	parsed, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid S3 STORAGE_URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	backend := StorageBackendConfig{
		Name: "s3",
		Type: "s3",
		Config: map[string]interface{}{
			"bucket": parsed.Host,
			"region": "us-east-1",
		},
	}

	// AWS credentials come from their conventional variables, unprefixed.
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		backend.Config["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		backend.Config["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		backend.Config["region"] = region
	}

	// Query parameters win over the conventional variables.
	query := parsed.Query()
	if region := query.Get("region"); region != "" {
		backend.Config["region"] = region
	}
	if endpoint := query.Get("endpoint"); endpoint != "" {
		backend.Config["endpoint"] = endpoint
		backend.Config["use_path_style"] = true
	}

	c.DefaultStorageBackend = "s3"
	c.StorageBackends = upsertStorageBackend(c.StorageBackends, backend)
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	if backend.Config == nil {
		backend.Config = map[string]interface{}{}
	}
	for i := range backends {
		if backends[i].Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
