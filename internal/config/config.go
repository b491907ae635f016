package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/signflow/signflow-server/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Google    GoogleConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	MinIO     MinIOConfig
	Signing   SigningConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	FrontendURL  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI             string
	Database        string
	DocsCollection  string
	UsersCollection string
	Timeout         time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GoogleConfig configures the identity provider used to verify signer emails.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Issuer       string

	// InsecureSkipVerify skips id token signature checks. Local testing only.
	InsecureSkipVerify bool
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// SigningConfig tunes the signing workflow.
type SigningConfig struct {
	// StrictToken requires the sign request to carry the current sign token.
	StrictToken        bool
	DefaultAgencyEmail string
}

type AdminConfig struct {
	Email    string
	Password string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "4000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("MONGODB_DATABASE", "signflow")
	v.SetDefault("MONGODB_DOCS_COLLECTION", "docs")
	v.SetDefault("MONGODB_USERS_COLLECTION", "users")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("GOOGLE_ISSUER", "https://accounts.google.com")
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRE", "720h")
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", "2160h")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MINIO_BUCKET", "signed-documents")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("SIGN_TOKEN_STRICT", false)
	v.SetDefault("DEFAULT_AGENCY_EMAIL", "info@usbrandbooster.com")
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("ADMIN_PASSWORD", "Passw0rd!")

	mongoURI := v.GetString("MONGODB_URI")
	if mongoURI == "" {
		mongoURI = v.GetString("MONGO_URI")
	}
	if mongoURI == "" {
		return nil, fmt.Errorf("environment variable MONGODB_URI (or MONGO_URI) is required")
	}

	accessTTL, err := parseTTL(v.GetString("JWT_EXPIRE"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRE: %w", err)
	}
	refreshTTL, err := parseTTL(v.GetString("JWT_REFRESH_TOKEN_TTL"))
	if err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_TOKEN_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			FrontendURL:  strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:             mongoURI,
			Database:        v.GetString("MONGODB_DATABASE"),
			DocsCollection:  v.GetString("MONGODB_DOCS_COLLECTION"),
			UsersCollection: v.GetString("MONGODB_USERS_COLLECTION"),
			Timeout:         time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  v.GetString("GOOGLE_REDIRECT_URI"),
			Issuer:       v.GetString("GOOGLE_ISSUER"),

			InsecureSkipVerify: v.GetBool("GOOGLE_INSECURE_SKIP_VERIFY"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("SMTP_FROM"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Region:    v.GetString("MINIO_REGION"),
		},
		Signing: SigningConfig{
			StrictToken:        v.GetBool("SIGN_TOKEN_STRICT"),
			DefaultAgencyEmail: v.GetString("DEFAULT_AGENCY_EMAIL"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if cfg.JWT.Secret == "dev_secret" {
		logger.Warnf("JWT_SECRET is not set; using the development secret")
	}

	return cfg, nil
}

// parseTTL accepts Go durations ("15m", "720h") and the day form ("30d").
func parseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(strings.TrimSuffix(s, "d"), "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
