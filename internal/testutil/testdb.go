// Package testutil provides shared helpers for package tests: an isolated
// in-memory database with the full schema, a deterministic vault, and stub
// collaborators for the staging store.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"warelic/internal/database"
	"warelic/internal/vault"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestVaultKey is a fixed 32-byte hex key for tests.
const TestVaultKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var dbSeq atomic.Int64

// OpenTestDB opens a fresh in-memory database and applies the full schema,
// including the partial unique indexes. Each call gets its own database so
// parallel tests never share state.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:warelic_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// NewTestVault builds a vault with the fixed test key.
func NewTestVault(t *testing.T) *vault.Vault {
	t.Helper()

	v, err := vault.New(TestVaultKey)
	require.NoError(t, err)
	return v
}
