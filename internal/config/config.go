// Package config provides application configuration loading and management.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	Port              string `mapstructure:"PORT"`
	DBHost            string `mapstructure:"DB_HOST"`
	DBPort            string `mapstructure:"DB_PORT"`
	DBUser            string `mapstructure:"DB_USER"`
	DBPassword        string `mapstructure:"DB_PASSWORD"`
	DBName            string `mapstructure:"DB_NAME"`
	DBSSLMode         string `mapstructure:"DB_SSLMODE"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	AllowedOrigins    string `mapstructure:"ALLOWED_ORIGINS"`
	Env               string `mapstructure:"APP_ENV"`
	FileEncryptionKey string `mapstructure:"FILE_ENCRYPTION_KEY"`
	StagingDir        string `mapstructure:"STAGING_DIR"`
	CanonicalDir      string `mapstructure:"CANONICAL_DIR"`
	MaxUploadSizeMB   int    `mapstructure:"MAX_UPLOAD_SIZE_MB"`
	ScanMode          string `mapstructure:"SCAN_MODE"`
	ScanEndpoint      string `mapstructure:"SCAN_ENDPOINT"`
	TraceExporter     string `mapstructure:"TRACE_EXPORTER"`
	OTLPEndpoint      string `mapstructure:"OTLP_ENDPOINT"`
}

// devEncryptionKey is only a placeholder for local development; Validate
// refuses it in production.
const devEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			log.Printf("No profile-specific config 'config.%s.yml' found, relying on environment", env)
		}
	}

	// Set default values for development
	viper.SetDefault("PORT", "8460")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "warelic")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("FILE_ENCRYPTION_KEY", devEncryptionKey)
	viper.SetDefault("STAGING_DIR", "/tmp/warelic/staging")
	viper.SetDefault("CANONICAL_DIR", "/tmp/warelic/documents")
	viper.SetDefault("MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("SCAN_MODE", "permissive")
	viper.SetDefault("SCAN_ENDPOINT", "")
	viper.SetDefault("TRACE_EXPORTER", "none")
	viper.SetDefault("OTLP_ENDPOINT", "")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if key, err := hex.DecodeString(c.FileEncryptionKey); err != nil || len(key) != 32 {
		return errors.New("FILE_ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
	}
	if c.StagingDir == "" || c.CanonicalDir == "" {
		return errors.New("STAGING_DIR and CANONICAL_DIR are required")
	}
	if c.StagingDir == c.CanonicalDir {
		return errors.New("STAGING_DIR and CANONICAL_DIR must differ")
	}
	if c.ScanMode != "mandatory" && c.ScanMode != "permissive" {
		return errors.New("SCAN_MODE must be 'mandatory' or 'permissive'")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.FileEncryptionKey == devEncryptionKey {
			return errors.New("FILE_ENCRYPTION_KEY must be changed from the default value in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.ScanMode != "mandatory" {
			log.Println("WARNING: SCAN_MODE is 'permissive' in production; uploads proceed when the scanner is down.")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
