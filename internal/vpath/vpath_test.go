package vpath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStrip(t *testing.T) {
	cases := []struct {
		alias, vpath, want string
	}{
		{"~quince", "~quince/docs/a.pdf", "docs/a.pdf"},
		{"~quince", "~quince/docs/", "docs"},
		{"~quince", "~quince", ""},
		{"~quince", "~quince/", ""},
		{"~quince", "docs/a.pdf", "docs/a.pdf"},
		{"~pdf", "~pdf/reports/q1.pdf", "reports/q1.pdf"},
		// one trailing slash dropped, not all
		{"~quince", "~quince/docs//", "docs/"},
	}
	for _, tc := range cases {
		if got := Strip(tc.alias, tc.vpath); got != tc.want {
			t.Errorf("Strip(%q, %q) = %q, want %q", tc.alias, tc.vpath, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		vpath, want string
	}{
		{"~quince/docs/a.pdf", "/srv/q/docs/a.pdf"},
		{"~quince", "/srv/q"},
		{"~quince/", "/srv/q"},
		{"rel/b.txt", "/srv/q/rel/b.txt"},
		// traversal segments pass through untouched
		{"~quince/../escape.txt", "/srv/q/../escape.txt"},
	}
	for _, tc := range cases {
		if got := Resolve("/srv/q", "~quince", tc.vpath); got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.vpath, got, tc.want)
		}
	}
}

func TestEnsureParents(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c.txt")
	if err := EnsureParents(target); err != nil {
		t.Fatalf("EnsureParents: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "a", "b"))
	if err != nil || !info.IsDir() {
		t.Fatalf("parent not created: %v", err)
	}
	// idempotent
	if err := EnsureParents(target); err != nil {
		t.Errorf("EnsureParents twice: %v", err)
	}
}

func TestCleanupEmptyDirs(t *testing.T) {
	root := t.TempDir()
	leaf := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(leaf, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := CleanupEmptyDirs(leaf, root); got != 3 {
		t.Errorf("removed %d dirs, want 3", got)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Errorf("a still exists: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root was removed: %v", err)
	}
}

func TestCleanupStopsAtNonEmpty(t *testing.T) {
	root := t.TempDir()
	leaf := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(leaf, 0o755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(root, "a", "keep.txt")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := CleanupEmptyDirs(leaf, root); got != 1 {
		t.Errorf("removed %d dirs, want 1", got)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("keep.txt gone: %v", err)
	}
}

func TestCleanupOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	if got := CleanupEmptyDirs(other, root); got != 0 {
		t.Errorf("removed %d dirs outside root, want 0", got)
	}
	if got := CleanupEmptyDirs(root, root); got != 0 {
		t.Errorf("removed the root itself")
	}
}
