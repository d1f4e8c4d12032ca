package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the process-wide configuration. It is read once at startup
// and injected into each component; nothing reads the environment at call
// time.
type Config struct {
	ServerAddr string
	Production bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Access and refresh tokens are signed with distinct secrets and carry
	// independent expiries, both configured in minutes.
	AccessTokenSecret     string
	AccessTokenExpiryMin  int
	RefreshTokenSecret    string
	RefreshTokenExpiryMin int

	// When true, login failures do not distinguish "unknown email" from
	// "wrong password" (no account enumeration). When false the original
	// behavior is kept and unknown emails surface as 404.
	UniformLoginErrors bool

	BcryptCost int

	AllowedOrigins []string
	LogLevel       string

	RedisAddr string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool
	S3UsePathStyle bool
}

// Load reads configuration from the environment, applying development
// defaults for everything except production secrets.
func Load() (*Config, error) {
	production := getEnvOrDefault("APP_ENV", "development") == "production"

	accessExpiry, err := parsePositiveInt("JWT_EXPIRES_IN", "15")
	if err != nil {
		return nil, err
	}

	refreshExpiry, err := parsePositiveInt("JWT_REFRESH_EXPIRES_IN", "10080")
	if err != nil {
		return nil, err
	}

	bcryptCost, err := parsePositiveInt("BCRYPT_COST", "12")
	if err != nil {
		return nil, err
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	uniformLogin, _ := strconv.ParseBool(getEnvOrDefault("UNIFORM_LOGIN_ERRORS", "true"))
	s3UseSSL, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_SSL", "false"))
	s3UsePathStyle, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_PATH_STYLE", "true"))

	cfg := &Config{
		ServerAddr: getEnvOrDefault("SERVER_ADDR", ":8080"),
		Production: production,

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "openblog"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "openblog_dev_password"),
		DBName:     getEnvOrDefault("DB_NAME", "openblog"),

		AccessTokenSecret:     os.Getenv("JWT_SECRET"),
		AccessTokenExpiryMin:  accessExpiry,
		RefreshTokenSecret:    os.Getenv("JWT_REFRESH_SECRET"),
		RefreshTokenExpiryMin: refreshExpiry,

		UniformLoginErrors: uniformLogin,
		BcryptCost:         bcryptCost,

		AllowedOrigins: splitOrigins(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),

		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		S3Endpoint:     getEnvOrDefault("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:       getEnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:    getEnvOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    getEnvOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:       getEnvOrDefault("S3_BUCKET", "openblog-static"),
		S3UseSSL:       s3UseSSL,
		S3UsePathStyle: s3UsePathStyle,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces the startup invariants. Token signing can only fail on
// misconfiguration, so missing secrets are fatal here rather than per request.
func (c *Config) validate() error {
	if c.AccessTokenSecret == "" {
		if c.Production {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.AccessTokenSecret = "dev-access-secret-change-in-production"
	}

	if c.RefreshTokenSecret == "" {
		if c.Production {
			return fmt.Errorf("JWT_REFRESH_SECRET is required in production")
		}
		c.RefreshTokenSecret = "dev-refresh-secret-change-in-production"
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.AccessTokenExpiryMin > c.RefreshTokenExpiryMin {
		return fmt.Errorf("JWT_EXPIRES_IN (%dm) must not exceed JWT_REFRESH_EXPIRES_IN (%dm)",
			c.AccessTokenExpiryMin, c.RefreshTokenExpiryMin)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parsePositiveInt(key, defaultValue string) (int, error) {
	raw := getEnvOrDefault(key, defaultValue)
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
