package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/binarykey"
	"github.com/tendant/simple-media/pkg/mediarepo/blob"
	fsblob "github.com/tendant/simple-media/pkg/mediarepo/blob/fs"
	memoryblob "github.com/tendant/simple-media/pkg/mediarepo/blob/memory"
	s3blob "github.com/tendant/simple-media/pkg/mediarepo/blob/s3"
	memorystore "github.com/tendant/simple-media/pkg/mediarepo/store/memory"
	pgstore "github.com/tendant/simple-media/pkg/mediarepo/store/postgres"
)

// Store types
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Binary store types. BinaryInline keeps payloads in the node rows.
const (
	BinaryInline = "inline"
	BinaryMemory = "memory"
	BinaryFS     = "fs"
	BinaryS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
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
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		LogFormat:      "text",
		StoreType:      StoreMemory,
		DBSchema:       "media",
		AutoMigrate:    true,
		BinaryStore:    BinaryInline,
		FSBaseDir:      "./data/binaries",
		S3Region:       "us-east-1",
		S3SSEAlgorithm: "AES256",
		KeyLayout:      "sharded",
		MaxFileSize:    mediarepo.DefaultMaxFileSize,
		AdminUsername:  memorystore.DefaultAdminUser,
		ExitPolicy:     mediarepo.CommitAlways.String(),
	}
}

// ServerConfig represents configuration for the media repository and the commands serving it
type ServerConfig struct {
	Port        string `env:"PORT" json:"port" yaml:"port"`
	Environment string `env:"ENVIRONMENT" json:"environment" yaml:"environment"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" json:"log_level" yaml:"log_level"`       // debug, info, warn, error
	LogFormat   string `env:"LOG_FORMAT" json:"log_format" yaml:"log_format"`    // text, json

	// Content store configuration
	StoreType   string `env:"STORE_TYPE" json:"store_type" yaml:"store_type"` // "memory", "postgres"
	DatabaseURL string `env:"DATABASE_URL" json:"database_url" yaml:"database_url"`
	DBSchema    string `env:"DB_SCHEMA" json:"db_schema" yaml:"db_schema"` // Postgres schema to use (default: media)
	AutoMigrate bool   `env:"AUTO_MIGRATE" json:"auto_migrate" yaml:"auto_migrate"`

	// Binary payload offload (postgres store only)
	BinaryStore       string `env:"BINARY_STORE" json:"binary_store" yaml:"binary_store"` // "inline", "memory", "fs", "s3"
	FSBaseDir         string `env:"FS_BASE_DIR" json:"fs_base_dir" yaml:"fs_base_dir"`
	S3Bucket          string `env:"S3_BUCKET" json:"s3_bucket" yaml:"s3_bucket"`
	S3Region          string `env:"AWS_REGION" json:"s3_region" yaml:"s3_region"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-" yaml:"-"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-" yaml:"-"`
	S3Endpoint        string `env:"S3_ENDPOINT" json:"s3_endpoint" yaml:"s3_endpoint"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" json:"s3_use_path_style" yaml:"s3_use_path_style"`
	S3KeyPrefix       string `env:"S3_KEY_PREFIX" json:"s3_key_prefix" yaml:"s3_key_prefix"`
	S3EnableSSE       bool   `env:"S3_ENABLE_SSE" json:"s3_enable_sse" yaml:"s3_enable_sse"`
	S3SSEAlgorithm    string `env:"S3_SSE_ALGORITHM" json:"s3_sse_algorithm" yaml:"s3_sse_algorithm"`
	S3SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID" json:"s3_sse_kms_key_id" yaml:"s3_sse_kms_key_id"`
	S3CreateBucket    bool   `env:"S3_CREATE_BUCKET_IF_NOT_EXIST" json:"s3_create_bucket_if_not_exist" yaml:"s3_create_bucket_if_not_exist"`
	KeyLayout         string `env:"BINARY_KEY_LAYOUT" json:"binary_key_layout" yaml:"binary_key_layout"` // "flat", "sharded"

	// Repository options
	MaxFileSize   int64  `env:"MAX_FILE_SIZE" json:"max_file_size" yaml:"max_file_size"`
	AdminUsername string `env:"ADMIN_USERNAME" json:"admin_username" yaml:"admin_username"`
	AdminPassword string `env:"ADMIN_PASSWORD" json:"-" yaml:"-"`
	ExitPolicy    string `env:"EXIT_POLICY" json:"exit_policy" yaml:"exit_policy"` // "commit_always", "commit_on_success"

	// Hex encoded SHA-256 of the API key accepted by the HTTP server. Empty disables the check.
	APIKeySHA256 string `env:"API_KEY_SHA256" json:"-" yaml:"-"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.StoreType {
	case StoreMemory:
		if c.BinaryStore != BinaryInline {
			return fmt.Errorf("binary_store %q requires store_type 'postgres'", c.BinaryStore)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return errors.New("store_type must be 'memory' or 'postgres'")
	}

	switch c.BinaryStore {
	case BinaryInline, BinaryMemory:
	case BinaryFS:
		if c.FSBaseDir == "" {
			return errors.New("fs_base_dir is required when using the fs binary store")
		}
	case BinaryS3:
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required when using the s3 binary store")
		}
	default:
		return fmt.Errorf("unsupported binary store: %s", c.BinaryStore)
	}

	if _, err := binarykey.ForLayout(c.KeyLayout); err != nil {
		return err
	}
	if c.MaxFileSize <= 0 {
		return errors.New("max_file_size must be positive")
	}
	if c.AdminUsername == "" {
		return errors.New("admin_username is required")
	}
	if c.AdminPassword == "" {
		return errors.New("admin_password is required")
	}
	if _, err := mediarepo.ParseExitPolicy(c.ExitPolicy); err != nil {
		return err
	}
	return nil
}

// Credentials returns the admin credentials the repository logs in with
func (c *ServerConfig) Credentials() mediarepo.Credentials {
	return mediarepo.Credentials{UserID: c.AdminUsername, Password: c.AdminPassword}
}

// Runtime holds the components built from a ServerConfig
type Runtime struct {
	Store        mediarepo.ContentStore
	Repository   mediarepo.Repository
	Bootstrapper *mediarepo.Bootstrapper

	closers []func()
}

// Close releases database connections held by the runtime.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Build creates the content store, the repository and the bootstrapper
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	blobs, err := c.BuildBinaryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build binary store: %w", err)
	}
	store, closeStore, err := c.BuildContentStore(ctx, blobs, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build content store: %w", err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, closeStore)

	policy, err := mediarepo.ParseExitPolicy(c.ExitPolicy)
	if err != nil {
		rt.Close()
		return nil, err
	}
	factory := mediarepo.NewSessionFactory(store, c.Credentials(), policy, logger)
	repo, err := mediarepo.New(
		mediarepo.WithSessionFactory(factory),
		mediarepo.WithMaxFileSize(c.MaxFileSize),
		mediarepo.WithLogger(logger),
	)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo
	rt.Bootstrapper = mediarepo.NewBootstrapper(store, factory, c.Credentials(), logger)
	return rt, nil
}

// BuildContentStore creates the content store engine. The returned func
// releases its resources.
func (c *ServerConfig) BuildContentStore(ctx context.Context, blobs blob.Store, logger *slog.Logger) (mediarepo.ContentStore, func(), error) {
	switch c.StoreType {
	case StoreMemory:
		s, err := memorystore.New(
			memorystore.WithAdminUser(c.AdminUsername),
			memorystore.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case StorePostgres:
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		keys, err := binarykey.ForLayout(c.KeyLayout)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		options := []pgstore.Option{
			pgstore.WithAdminUser(c.AdminUsername),
			pgstore.WithKeyGenerator(keys),
			pgstore.WithLogger(logger),
		}
		if blobs != nil {
			options = append(options, pgstore.WithBinaryStore(blobs))
		}
		s, err := pgstore.NewWithPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return s, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", c.StoreType)
	}
}

// BuildBinaryStore creates the blob store binaries are offloaded to. It
// returns nil for BinaryInline.
func (c *ServerConfig) BuildBinaryStore(ctx context.Context) (blob.Store, error) {
	switch c.BinaryStore {
	case BinaryInline:
		return nil, nil
	case BinaryMemory:
		return memoryblob.New(), nil
	case BinaryFS:
		return fsblob.New(fsblob.Config{BaseDir: c.FSBaseDir})
	case BinaryS3:
		return s3blob.New(ctx, s3blob.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			KeyPrefix:              c.S3KeyPrefix,
			EnableSSE:              c.S3EnableSSE,
			SSEAlgorithm:           c.S3SSEAlgorithm,
			SSEKMSKeyID:            c.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})
	default:
		return nil, fmt.Errorf("unsupported binary store: %s", c.BinaryStore)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres opens a short lived pool on databaseURL with schema as the
// search path and pings it.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Ping checks that the configured content store is reachable. The memory
// store always is.
func (c *ServerConfig) Ping(ctx context.Context) error {
	if c.StoreType != StorePostgres {
		return nil
	}
	return PingPostgres(ctx, c.DatabaseURL, c.DBSchema)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
