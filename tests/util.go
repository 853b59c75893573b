package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/storage/database"
)

// PrepareDB connects to the test database and migrates it. The test is skipped when no database is reachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("database tests are skipped in short mode")
	}

	conf, err := core.LoadConfig(core.Getwd())
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	db, err := database.Connect(conf, 1)
	if err != nil {
		t.Skipf("no test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

// CreateProfile inserts a profile with the given tier and returns its id.
func CreateProfile(t *testing.T, db *sqlx.DB, tier *string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := db.ExecContext(context.Background(), `INSERT INTO profiles (id, subscription_tier) VALUES ($1, $2)`, id, tier); err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM profiles WHERE id = $1`, id) })
	return id
}
