package validator

import (
	"os"
	"path/filepath"
	"testing"

	"dumpsplit/internal/output"
)

func TestValidate(t *testing.T) {
	v := New()
	n, err := v.Validate("CREATE TABLE t (id INT);\nINSERT INTO t VALUES (1),(2);\n-- trailing\n")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if n != 2 {
		t.Fatalf("statements=%d, want 2", n)
	}
	if _, err := v.Validate("INSERT INTO t VALUES (1),"); err == nil {
		t.Fatalf("expected dangling insert to fail")
	}
}

func TestValidateChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sql")
	if err := os.WriteFile(path, []byte("INSERT INTO `t` VALUES (3);"), 0o644); err != nil {
		t.Fatalf("write chunk: %v", err)
	}
	n, err := New().ValidateChunk(output.ChunkInfo{Name: "1.sql", Path: path})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
