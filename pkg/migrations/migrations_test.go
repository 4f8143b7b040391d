package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/tipx/tipx/pkg/migrations/ledgerdb"
	"github.com/tipx/tipx/pkg/pgutil"
)

func TestLedgerDBMigrations_Apply(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, ledgerdb.Migrations)

	// Initialize migration system
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run all migrations up
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	// Verify all expected tables exist
	expectedTables := []string{
		"contributions",
		"loyalty_payouts",
		"bun_migrations",
	}

	for _, table := range expectedTables {
		pgutil.AssertTableExists(t, db, table)
	}

	// Verify the lookup indexes exist
	pgutil.AssertIndexExists(t, db, "idx_contributions_tx_hash")
	pgutil.AssertIndexExists(t, db, "idx_contributions_patron")
	pgutil.AssertIndexExists(t, db, "idx_contributions_creator")
	pgutil.AssertIndexExists(t, db, "idx_contributions_pair")
	pgutil.AssertIndexExists(t, db, "idx_loyalty_payouts_patron")
	pgutil.AssertIndexExists(t, db, "idx_loyalty_payouts_creator")
}

func TestLedgerDBMigrations_Rollback(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, ledgerdb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Roll everything back group by group
	for {
		group, err := migrator.Rollback(ctx)
		if err != nil {
			t.Fatalf("Rollback() failed: %v", err)
		}
		if group.IsZero() {
			break
		}
	}

	pgutil.AssertTableNotExists(t, db, "contributions")
	pgutil.AssertTableNotExists(t, db, "loyalty_payouts")
}
