package postgres

import (
	"context"
	"testing"
	"time"
)

func TestStore_PostgresPingAndMigrationStatus(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	status, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("migration status: %v", err)
	}
	if status.Version == 0 || status.Applied == 0 {
		t.Fatalf("expected applied migrations, got %+v", status)
	}

	// Повторный запуск миграций — no-op.
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("re-run migrations: %v", err)
	}
	status2, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("migration status after re-run: %v", err)
	}
	if status2 != status {
		t.Fatalf("migrations must be idempotent: %+v vs %+v", status, status2)
	}
}

func TestStore_NilSafety(t *testing.T) {
	t.Parallel()

	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("nil store close must be no-op: %v", err)
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("nil store ping must fail")
	}
	if err := store.MigrateUp(context.Background(), 0); err == nil {
		t.Fatal("nil store migrate must fail")
	}
}
