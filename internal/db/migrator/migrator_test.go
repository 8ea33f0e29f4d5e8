package migrator

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMigrationFilesOrderedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_create_token_metadata.sql",
		"0001_create_trades.sql",
		"README.md",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := MigrationFiles(dir)
	if err != nil {
		t.Fatalf("MigrationFiles: %v", err)
	}
	want := []string{"0001_create_trades.sql", "0002_create_token_metadata.sql"}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
}

func TestMigrationFilesMissingDir(t *testing.T) {
	if _, err := MigrationFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum([]byte("CREATE TABLE trades ();"))
	b := Checksum([]byte("CREATE TABLE trades ();"))
	if a != b {
		t.Fatalf("checksum not deterministic: %s != %s", a, b)
	}
	if c := Checksum([]byte("CREATE TABLE trades ( );")); c == a {
		t.Fatal("checksum did not change with content")
	}
	if len(a) != 64 {
		t.Fatalf("checksum length = %d, want 64 hex chars", len(a))
	}
}
