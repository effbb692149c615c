package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const storeTypeEnv = "STORE_TYPE"

// WithEnv applies environment variable overrides. Variables that are not set
// leave the current value untouched.
//
// Server:
//   PORT, ENVIRONMENT, LOG_LEVEL, LOG_FORMAT, API_KEY_SHA256
//
// Content store:
//   STORE_TYPE - "memory" or "postgres". When unset a postgres:// or
//                postgresql:// DATABASE_URL selects postgres.
//   DATABASE_URL, DB_SCHEMA, AUTO_MIGRATE
//
// Binaries:
//   BINARY_STORE - "inline", "memory", "fs" or "s3"
//   FS_BASE_DIR, S3_BUCKET, S3_ENDPOINT, S3_USE_PATH_STYLE, S3_KEY_PREFIX,
//   S3_ENABLE_SSE, S3_SSE_ALGORITHM, S3_SSE_KMS_KEY_ID,
//   S3_CREATE_BUCKET_IF_NOT_EXIST, BINARY_KEY_LAYOUT,
//   AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
//
// Repository:
//   MAX_FILE_SIZE, ADMIN_USERNAME, ADMIN_PASSWORD, EXIT_POLICY
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		if _, ok := os.LookupEnv(storeTypeEnv); !ok {
			c.StoreType = detectStoreType(c.StoreType, c.DatabaseURL)
		}
		c.normalize()
		return nil
	}
}

// WithConfigFile reads a yaml, json, toml or env file and then applies the
// environment on top of it.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		// cleared so an empty result means neither the file nor the
		// environment named a store type
		storeType := c.StoreType
		c.StoreType = ""
		if err := cleanenv.ReadConfig(path, c); err != nil {
			c.StoreType = storeType
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		if c.StoreType == "" {
			c.StoreType = detectStoreType(storeType, c.DatabaseURL)
		}
		c.normalize()
		return nil
	}
}

// detectStoreType picks postgres when only a postgres URL was configured
func detectStoreType(current, databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") || strings.HasPrefix(databaseURL, "postgres://") {
		return StorePostgres
	}
	return current
}

func (c *ServerConfig) normalize() {
	c.StoreType = normalize(c.StoreType)
	c.BinaryStore = normalize(c.BinaryStore)
	c.KeyLayout = normalize(c.KeyLayout)
	c.ExitPolicy = normalize(c.ExitPolicy)
	c.LogLevel = normalize(c.LogLevel)
	c.LogFormat = normalize(c.LogFormat)
}
