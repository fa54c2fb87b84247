package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// readArchive returns name -> content for every entry.
func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	entries := make(map[string]string)
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return entries
		}
		if err != nil {
			t.Fatalf("read archive: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read entry %s: %v", hdr.Name, err)
		}
		entries[hdr.Name] = string(data)
	}
}

func TestBuildTemp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "docs", "b.txt"), "beta")
	writeFile(t, filepath.Join(root, "skip.pdf"), "not text")

	tmp, size, err := BuildTemp(root, ".txt")
	if err != nil {
		t.Fatalf("BuildTemp: %v", err)
	}
	defer os.Remove(tmp)
	if size <= 0 {
		t.Fatalf("size = %d", size)
	}

	entries := readArchive(t, tmp)
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	if entries["a.txt"] != "alpha" {
		t.Errorf("a.txt = %q", entries["a.txt"])
	}
	if entries["docs/b.txt"] != "beta" {
		t.Errorf("docs/b.txt = %q", entries["docs/b.txt"])
	}
}

// An empty tree still produces a valid archive, not an error.
func TestBuildTempEmpty(t *testing.T) {
	tmp, size, err := BuildTemp(t.TempDir(), ".pdf")
	if err != nil {
		t.Fatalf("BuildTemp: %v", err)
	}
	defer os.Remove(tmp)
	if size <= 0 {
		t.Fatalf("size = %d", size)
	}
	if entries := readArchive(t, tmp); len(entries) != 0 {
		t.Errorf("entries = %v", entries)
	}
}

func TestBuildTempMissingRoot(t *testing.T) {
	tmp, _, err := BuildTemp(filepath.Join(t.TempDir(), "nope"), ".zip")
	if err != nil {
		t.Fatalf("BuildTemp: %v", err)
	}
	defer os.Remove(tmp)
	if entries := readArchive(t, tmp); len(entries) != 0 {
		t.Errorf("entries = %v", entries)
	}
}
