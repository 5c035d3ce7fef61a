package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestEnsureDir_CreatesNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static", "audio")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", dir)
	}
}

func TestEnsureDir_ReplacesRegularFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	if err := os.WriteFile(dir, []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatal("regular file should have been replaced by a directory")
	}
}

func TestEnsureDir_IdempotentKeepsContents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(dir, "speech_keep.wav")
	if err := os.WriteFile(keep, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("second EnsureDir failed: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("existing files must survive a second EnsureDir")
	}
}

func TestEnsureDir_Concurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	if err := os.WriteFile(dir, []byte("collide"), 0644); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- EnsureDir(dir)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent EnsureDir failed: %v", err)
		}
	}
}

func TestDir_NewFileUnique(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, path := d.NewFile(".wav")
		if len(id) != 32 {
			t.Fatalf("expected 32 hex char id, got %q", id)
		}
		if !strings.HasSuffix(path, "speech_"+id+".wav") {
			t.Fatalf("unexpected path %q", path)
		}
		if seen[path] {
			t.Fatalf("duplicate path %q", path)
		}
		seen[path] = true
	}
}

func TestSibling(t *testing.T) {
	if got := Sibling("/a/speech_x.wav", ".mp3"); got != "/a/speech_x.mp3" {
		t.Errorf("got %q", got)
	}
}

func TestDir_Contains(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	_, path := d.NewFile(".wav")
	if !d.Contains(path) {
		t.Errorf("expected %s to be inside output dir", path)
	}
	if d.Contains(filepath.Join(root, "other.wav")) {
		t.Error("files without the speech_ prefix are not ours")
	}
	if d.Contains(filepath.Join(root, "..", "speech_x.wav")) {
		t.Error("paths outside the dir must be rejected")
	}
}
