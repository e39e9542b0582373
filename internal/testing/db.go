// Package testing provides testing utilities and helpers for the brickvault project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/brickvault/internal/database"
)

// profiles maps schema names to the profile used in production, so tests run
// against the same PRAGMAs as the live service.
var profiles = map[string]database.DatabaseProfile{
	"ledger": database.ProfileLedger,
	"app":    database.ProfileStandard,
	"cache":  database.ProfileCache,
}

// NewTestDB creates a temporary file-backed SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection and removes the file.
//
// Supported schema names:
//   - "ledger" - applies ledger_schema.sql
//   - "app" - applies app_schema.sql
//   - "cache" - applies cache_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temporary files instead of :memory: so every pooled connection sees the same database
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	profile, ok := profiles[name]
	if !ok {
		profile = database.ProfileStandard
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	}
}
