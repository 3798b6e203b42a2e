package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
	"github.com/contentrepo/contentrepo/pkg/contentrepo/repo/memory"
	fsstorage "github.com/contentrepo/contentrepo/pkg/contentrepo/storage/fs"
	memorystorage "github.com/contentrepo/contentrepo/pkg/contentrepo/storage/memory"
	s3storage "github.com/contentrepo/contentrepo/pkg/contentrepo/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
	}
}

// ServerConfig represents server configuration for the content-repository
// service. The object table is always in-memory; only content storage is
// pluggable.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig

	// JWTSecret enables bearer-token authentication on the HTTP API when
	// non-empty. Without it the API trusts the X-Principal header.
	JWTSecret string
}

// StorageBackendConfig represents configuration for a content backend.
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}
	return nil
}

// BuildService creates a Service instance from the server configuration.
func (c *ServerConfig) BuildService() (contentrepo.Service, error) {
	options := []contentrepo.Option{
		contentrepo.WithRepository(memory.New()),
	}

	for _, backendConfig := range c.StorageBackends {
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, contentrepo.WithBlobStore(backendConfig.Name, store))
	}
	options = append(options, contentrepo.WithDefaultBackend(c.DefaultStorageBackend))

	return contentrepo.New(options...)
}

// buildStorageBackend creates a BlobStore based on the backend configuration.
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (contentrepo.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		fsConfig := fsstorage.Config{
			BaseDir:   getString(config.Config, "base_dir", "./data/storage"),
			URLPrefix: getString(config.Config, "url_prefix", ""),
		}
		return fsstorage.New(fsConfig)

	case "s3":
		s3Config := s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			PresignDuration:        getInt(config.Config, "presign_duration", 3600),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		}
		return s3storage.New(s3Config)

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func getInt(config map[string]interface{}, key string, defaultValue int) int {
	if value, exists := config[key]; exists {
		if i, ok := value.(int); ok {
			return i
		}
		if str, ok := value.(string); ok {
			if i, err := strconv.Atoi(str); err == nil {
				return i
			}
		}
		if f, ok := value.(float64); ok {
			return int(f)
		}
	}
	return defaultValue
}
