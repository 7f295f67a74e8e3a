package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Avatar backends.
const (
	AvatarStoreDatabase = "database"
	AvatarStoreS3       = "s3"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	LogLevel      string
	StorageDriver string
	DatabaseURL   string
	JWTSecret     string
	JWTIssuer     string
	JWTTTL        time.Duration
	BcryptCost    int
	CORSOrigins   []string
	AvatarStore   string
	S3            S3Config
}

// S3Config locates the bucket used when AvatarStore is "s3".
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:          fallback(os.Getenv("PORT"), "8080"),
		LogLevel:      fallback(os.Getenv("LOG_LEVEL"), "info"),
		StorageDriver: strings.ToLower(fallback(os.Getenv("STORAGE_DRIVER"), StoragePostgres)),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:     fallback(os.Getenv("JWT_ISSUER"), "task-manager"),
		CORSOrigins:   parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		AvatarStore:   strings.ToLower(fallback(os.Getenv("AVATAR_STORE"), AvatarStoreDatabase)),
		S3: S3Config{
			Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Region:    fallback(os.Getenv("S3_REGION"), "us-east-1"),
			Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
		},
	}

	// 0 disables token expiry; sessions then end only on logout.
	minutes := fallback(os.Getenv("JWT_TTL_MINUTES"), "0")
	if ttlMinutes, err := strconv.Atoi(minutes); err == nil && ttlMinutes > 0 {
		cfg.JWTTTL = time.Duration(ttlMinutes) * time.Minute
	}

	if cost, err := strconv.Atoi(fallback(os.Getenv("BCRYPT_COST"), "10")); err == nil {
		cfg.BcryptCost = cost
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	switch cfg.AvatarStore {
	case AvatarStoreDatabase:
	case AvatarStoreS3:
		if cfg.S3.Bucket == "" {
			return Config{}, errors.New("S3_BUCKET is required when AVATAR_STORE=s3")
		}
	default:
		return Config{}, fmt.Errorf("unknown AVATAR_STORE %q", cfg.AvatarStore)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
