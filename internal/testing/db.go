// Package testing provides database and price fixtures shared by tests.
package testing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aristath/frontier/internal/database"
)

// NewTestDB creates an in-memory SQLite database with the embedded schema
// for name applied ("history" or "cache"; other names stay empty). The
// database is private to the calling test. The cleanup function is
// idempotent and also registered with t.Cleanup.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	profile := database.ProfileStandard
	if name == "cache" {
		profile = database.ProfileCache
	}

	// Subtest names contain slashes, which the URI would treat as a path
	uri := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), name)
	db, err := database.New(database.Config{
		Path:    uri,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
	t.Cleanup(cleanup)
	return db, cleanup
}
