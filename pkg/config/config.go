package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvFileVar names an optional dotenv file read before the environment.
const EnvFileVar = "PAIRCHAT_ENV_FILE"

type Config struct {
	Port           string
	Environment    string
	DatabasePath   string
	JWTSecret      string
	TokenTTL       time.Duration
	CORSOrigins    string
	MaxUploadSize  int64
	MaxRequestSize int64
	PublicBaseURL  string

	StorageDriver   string
	FileStoragePath string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3UsePathStyle  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel  string
	LogPretty bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("database_path", "./data/pairchat.db")
	v.SetDefault("jwt_secret", "your-secret-key-change-in-production")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("max_upload_size", 10485760) // 10MB per file
	v.SetDefault("max_request_size", 67108864)
	v.SetDefault("public_base_url", "")
	v.SetDefault("storage_driver", "local")
	v.SetDefault("file_storage_path", "./data/uploads")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")
	v.SetDefault("s3_use_path_style", false)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

// Load reads defaults, then the optional env file, then the process
// environment; later sources win.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(EnvFileVar)); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading env file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		Environment:    v.GetString("environment"),
		DatabasePath:   v.GetString("database_path"),
		JWTSecret:      v.GetString("jwt_secret"),
		TokenTTL:       v.GetDuration("token_ttl"),
		CORSOrigins:    v.GetString("cors_origins"),
		MaxUploadSize:  v.GetInt64("max_upload_size"),
		MaxRequestSize: v.GetInt64("max_request_size"),
		PublicBaseURL:  strings.TrimSuffix(v.GetString("public_base_url"), "/"),

		StorageDriver:   strings.ToLower(v.GetString("storage_driver")),
		FileStoragePath: v.GetString("file_storage_path"),
		S3Endpoint:      v.GetString("s3_endpoint"),
		S3Region:        v.GetString("s3_region"),
		S3Bucket:        v.GetString("s3_bucket"),
		S3AccessKeyID:   v.GetString("s3_access_key_id"),
		S3SecretKey:     v.GetString("s3_secret_access_key"),
		S3UsePathStyle:  v.GetBool("s3_use_path_style"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		CacheTTL:      v.GetDuration("cache_ttl"),

		LogLevel:  v.GetString("log_level"),
		LogPretty: v.GetBool("log_pretty"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.MaxRequestSize < c.MaxUploadSize {
		return fmt.Errorf("MAX_REQUEST_SIZE (%d) must not be smaller than MAX_UPLOAD_SIZE (%d)", c.MaxRequestSize, c.MaxUploadSize)
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (supported: local, s3)", c.StorageDriver)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
