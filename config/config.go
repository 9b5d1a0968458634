package config

import (
	"os"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Pi         PiConfig
	Agora      AgoraConfig
	Cloudinary CloudinaryConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// PiConfig configures the Pi platform API client and webhook verification.
// Mode "sandbox" relaxes the txid requirement on completion; "production"
// requires it.
type PiConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Mode          string
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
}

func (c PiConfig) Sandbox() bool { return c.Mode != "production" }

type AgoraConfig struct {
	AppID          string
	AppCertificate string
	TokenExpiry    time.Duration
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "5000"),
			Env:          getenv("ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "artisan:artisan@tcp(localhost:3306)/artisan?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getenv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "artisan",
		},
		Pi: PiConfig{
			BaseURL:       getenv("PI_API_URL", "https://api.minepi.com"),
			APIKey:        os.Getenv("PI_API_KEY"),
			WebhookSecret: os.Getenv("PI_WEBHOOK_SECRET"),
			Mode:          getenv("PI_MODE", "sandbox"),
			Timeout:       15 * time.Second,
			MaxRetries:    2,
			RetryBackoff:  500 * time.Millisecond,
		},
		Agora: AgoraConfig{
			AppID:          os.Getenv("AGORA_APP_ID"),
			AppCertificate: os.Getenv("AGORA_APP_CERTIFICATE"),
			TokenExpiry:    time.Hour,
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
