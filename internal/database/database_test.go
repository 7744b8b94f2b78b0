package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "saves.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "saves.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM save_files").Scan(&count); err != nil {
		t.Errorf("Failed to query save_files table: %v", err)
	}

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if version != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", version)
	}
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Hold two connections at once so the pool has to open a second one
	first, err := db.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() error: %v", err)
	}
	defer first.Close()
	second, err := db.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() error: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var timeout, synchronous int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: busy_timeout: %v", i, err)
		}
		if err := conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&synchronous); err != nil {
			t.Fatalf("conn %d: synchronous: %v", i, err)
		}
		if timeout != 5000 {
			t.Errorf("conn %d: busy_timeout = %d, want 5000", i, timeout)
		}
		// NORMAL is 1
		if synchronous != 1 {
			t.Errorf("conn %d: synchronous = %d, want 1", i, synchronous)
		}
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "dir", "saves.db")

	db, err := Open(nestedPath)
	if err != nil {
		t.Fatalf("Failed to open database with nested path: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nestedPath); os.IsNotExist(err) {
		t.Error("Database file was not created in nested directory")
	}
}

func TestOpenTwiceRunsMigrationsOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "saves.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	if err := db1.WriteSaveFile("a", "kept"); err != nil {
		t.Fatalf("WriteSaveFile failed: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer db2.Close()

	contents, err := db2.ReadSaveFile("a")
	if err != nil {
		t.Fatalf("ReadSaveFile failed: %v", err)
	}
	if contents != "kept" {
		t.Errorf("contents = %q, want %q", contents, "kept")
	}
}

func TestOpenInMemory(t *testing.T) {
	db, err := OpenWithConfig(Config{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	defer db.Close()

	if err := db.WriteSaveFile("x", "y"); err != nil {
		t.Errorf("WriteSaveFile failed: %v", err)
	}
}

func TestOpenWithConfigErrors(t *testing.T) {
	if _, err := OpenWithConfig(Config{Driver: "sqlite"}); err == nil {
		t.Error("expected error for sqlite without a path")
	}
	if _, err := OpenWithConfig(Config{Driver: "oracle"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestWriteAndReadSaveFile(t *testing.T) {
	db := openTestDB(t)

	if err := db.WriteSaveFile("slot_save.prgrs", `{"progressArray":[]}`); err != nil {
		t.Fatalf("WriteSaveFile failed: %v", err)
	}
	if err := db.WriteSaveFile("slot_save.prgrs", "second"); err != nil {
		t.Fatalf("overwriting WriteSaveFile failed: %v", err)
	}

	contents, err := db.ReadSaveFile("slot_save.prgrs")
	if err != nil {
		t.Fatalf("ReadSaveFile failed: %v", err)
	}
	if contents != "second" {
		t.Errorf("contents = %q, want %q", contents, "second")
	}
}

func TestReadSaveFileMaterializesMissing(t *testing.T) {
	db := openTestDB(t)

	contents, err := db.ReadSaveFile("never_written")
	if err != nil {
		t.Fatalf("ReadSaveFile failed: %v", err)
	}
	if contents != "" {
		t.Errorf("contents = %q, want empty", contents)
	}

	files, err := db.ListSaveFiles()
	if err != nil {
		t.Fatalf("ListSaveFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != "never_written" {
		t.Errorf("missing file should be created empty, got %+v", files)
	}
}

func TestCreateSaveFileExisting(t *testing.T) {
	db := openTestDB(t)

	if err := db.WriteSaveFile("taken", "kept"); err != nil {
		t.Fatalf("WriteSaveFile failed: %v", err)
	}

	created, err := db.createSaveFile("taken")
	if err != nil {
		t.Fatalf("duplicate insert should not be an error: %v", err)
	}
	if created {
		t.Error("createSaveFile reported an existing name as created")
	}

	contents, err := db.ReadSaveFile("taken")
	if err != nil {
		t.Fatalf("ReadSaveFile failed: %v", err)
	}
	if contents != "kept" {
		t.Errorf("contents = %q, want kept", contents)
	}

	created, err = db.createSaveFile("fresh")
	if err != nil || !created {
		t.Errorf("createSaveFile(fresh) = %v, %v; want true, nil", created, err)
	}
}

func TestMoveSaveFile(t *testing.T) {
	db := openTestDB(t)

	if err := db.WriteSaveFile("primary", "new"); err != nil {
		t.Fatal(err)
	}
	if err := db.WriteSaveFile("backup", "old"); err != nil {
		t.Fatal(err)
	}

	if err := db.MoveSaveFile("primary", "backup"); err != nil {
		t.Fatalf("MoveSaveFile failed: %v", err)
	}

	files, err := db.ListSaveFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file after move, got %d", len(files))
	}
	if files[0].Name != "backup" || files[0].Contents != "new" {
		t.Errorf("after move got %s=%q, want backup=%q", files[0].Name, files[0].Contents, "new")
	}
	if files[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestMoveSaveFileMissingSource(t *testing.T) {
	db := openTestDB(t)

	if err := db.WriteSaveFile("backup", "old"); err != nil {
		t.Fatal(err)
	}

	err := db.MoveSaveFile("primary", "backup")
	if !errors.Is(err, ErrSaveFileNotFound) {
		t.Fatalf("MoveSaveFile error = %v, want ErrSaveFileNotFound", err)
	}

	contents, err := db.ReadSaveFile("backup")
	if err != nil {
		t.Fatal(err)
	}
	if contents != "old" {
		t.Errorf("failed move should not touch the destination, got %q", contents)
	}
}

func TestListSaveFilesOrdered(t *testing.T) {
	db := openTestDB(t)

	for _, name := range []string{"c", "a", "b"} {
		if err := db.WriteSaveFile(name, name+"!"); err != nil {
			t.Fatal(err)
		}
	}

	files, err := db.ListSaveFiles()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d", len(files), len(want))
	}
	for i, name := range want {
		if files[i].Name != name || files[i].Contents != name+"!" {
			t.Errorf("file %d = %s/%q, want %s", i, files[i].Name, files[i].Contents, name)
		}
	}
}
