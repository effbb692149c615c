package config

// WithPort sets the HTTP port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithLogging sets the log level and format
func WithLogging(level, format string) Option {
	return func(c *ServerConfig) error {
		c.LogLevel = normalize(level)
		c.LogFormat = normalize(format)
		return nil
	}
}

// WithMemoryStore selects the in-process content store
func WithMemoryStore() Option {
	return func(c *ServerConfig) error {
		c.StoreType = StoreMemory
		c.DatabaseURL = ""
		return nil
	}
}

// WithPostgresStore selects the postgres content store
func WithPostgresStore(url, schema string) Option {
	return func(c *ServerConfig) error {
		c.StoreType = StorePostgres
		c.DatabaseURL = url
		if schema != "" {
			c.DBSchema = schema
		}
		return nil
	}
}

// WithAutoMigrate controls whether the postgres schema is created on build
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithInlineBinaries keeps binary payloads inside the content store
func WithInlineBinaries() Option {
	return func(c *ServerConfig) error {
		c.BinaryStore = BinaryInline
		return nil
	}
}

// WithMemoryBinaries offloads binary payloads to process memory
func WithMemoryBinaries() Option {
	return func(c *ServerConfig) error {
		c.BinaryStore = BinaryMemory
		return nil
	}
}

// WithFilesystemBinaries offloads binary payloads below baseDir
func WithFilesystemBinaries(baseDir string) Option {
	return func(c *ServerConfig) error {
		c.BinaryStore = BinaryFS
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Binaries offloads binary payloads to an S3 bucket
func WithS3Binaries(bucket, region string) Option {
	return func(c *ServerConfig) error {
		c.BinaryStore = BinaryS3
		c.S3Bucket = bucket
		if region != "" {
			c.S3Region = region
		}
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.S3AccessKeyID = accessKeyID
		c.S3SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint configures an S3 compatible endpoint such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle, createBucket bool) Option {
	return func(c *ServerConfig) error {
		c.S3Endpoint = endpoint
		c.S3UsePathStyle = usePathStyle
		c.S3CreateBucket = createBucket
		return nil
	}
}

// WithBinaryKeyLayout sets the object key layout ("flat" or "sharded")
func WithBinaryKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		c.KeyLayout = normalize(layout)
		return nil
	}
}

// WithMaxFileSize sets the largest accepted payload in bytes
func WithMaxFileSize(n int64) Option {
	return func(c *ServerConfig) error {
		c.MaxFileSize = n
		return nil
	}
}

// WithAdmin sets the credentials the repository logs in with
func WithAdmin(username, password string) Option {
	return func(c *ServerConfig) error {
		c.AdminUsername = username
		c.AdminPassword = password
		return nil
	}
}

// WithExitPolicy sets how sessions are closed ("commit_always" or "commit_on_success")
func WithExitPolicy(policy string) Option {
	return func(c *ServerConfig) error {
		c.ExitPolicy = normalize(policy)
		return nil
	}
}

// WithAPIKeySHA256 sets the hex encoded SHA-256 of the accepted API key
func WithAPIKeySHA256(hash string) Option {
	return func(c *ServerConfig) error {
		c.APIKeySHA256 = hash
		return nil
	}
}
