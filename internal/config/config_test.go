package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Port:              "8460",
		JWTSecret:         "a-development-secret-that-is-long-enough",
		FileEncryptionKey: strings.Repeat("ab", 32),
		StagingDir:        "/tmp/warelic-test/staging",
		CanonicalDir:      "/tmp/warelic-test/documents",
		ScanMode:          "permissive",
		Env:               "test",
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRequiresEncryptionKey(t *testing.T) {
	cfg := validConfig()
	cfg.FileEncryptionKey = "short"
	assert.Error(t, cfg.Validate())

	cfg.FileEncryptionKey = strings.Repeat("zz", 32) // not hex
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSharedStorageDirs(t *testing.T) {
	cfg := validConfig()
	cfg.CanonicalDir = cfg.StagingDir
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownScanMode(t *testing.T) {
	cfg := validConfig()
	cfg.ScanMode = "lenient"
	assert.Error(t, cfg.Validate())
}

func TestValidateProductionRefusesDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.DBPassword = "strong-db-password-for-prod"

	cfg.JWTSecret = "your-secret-key-change-in-production"
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = strings.Repeat("s", 40)
	cfg.FileEncryptionKey = devEncryptionKey
	assert.Error(t, cfg.Validate())

	cfg.FileEncryptionKey = strings.Repeat("ab", 32)
	assert.NoError(t, cfg.Validate())
}
