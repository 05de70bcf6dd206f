package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	entries, err := fs.ReadDir(Migrations, EmbeddedDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, e := range entries {
		if !sqlFileRe.MatchString(e.Name()) {
			t.Fatalf("bad migration filename %q", e.Name())
		}
	}
}

func TestSchemaKeepsManualItemCascade(t *testing.T) {
	b, err := fs.ReadFile(Migrations, "migrations/20260101000000_init_storefront.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	sql := string(b)
	if strings.Contains(strings.ToUpper(sql), "ON DELETE CASCADE") {
		t.Fatal("order_items must not cascade at the database level")
	}
	if !strings.Contains(sql, "orders_waybill_number_key UNIQUE (waybill_number)") {
		t.Fatal("expected unique waybill constraint")
	}
}

func TestValidateDirAndCreate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Subscriptions!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_subscriptions.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- nothing"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}
