package dissect

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.gguf"))
	touch(t, filepath.Join(dir, "c.tar"))
	touch(t, filepath.Join(dir, "d.tar.gz"))
	touch(t, filepath.Join(dir, "e.tgz"))
	touch(t, filepath.Join(dir, "noise.txt"))
	touch(t, filepath.Join(dir, "weights.bin"))
	touch(t, filepath.Join(dir, "sub", "b.GGUF"))

	candidates, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	want := []struct {
		base    string
		archive bool
	}{
		{"a.gguf", false},
		{"c.tar", true},
		{"d.tar.gz", true},
		{"e.tgz", true},
		{"b.GGUF", false},
	}
	if len(candidates) != len(want) {
		t.Fatalf("discovered %d candidates, want %d: %v", len(candidates), len(want), candidates)
	}
	for i, w := range want {
		if got := filepath.Base(candidates[i].Path); got != w.base {
			t.Errorf("candidate[%d] = %q, want %q", i, got, w.base)
		}
		if candidates[i].Archive != w.archive {
			t.Errorf("candidate[%d].Archive = %v, want %v", i, candidates[i].Archive, w.archive)
		}
	}
}

func TestDiscoverDeduplicatesRoots(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.gguf"))

	candidates, err := Discover(dir, dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("discovered %d candidates, want 1", len(candidates))
	}
}

func TestDiscoverEmptyTree(t *testing.T) {
	candidates, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("discovered %d candidates in empty tree", len(candidates))
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestClassifyName(t *testing.T) {
	cases := []struct {
		name    string
		archive bool
		ok      bool
	}{
		{"model.gguf", false, true},
		{"MODEL.GGUF", false, true},
		{"bundle.tar", true, true},
		{"bundle.tar.gz", true, true},
		{"bundle.tgz", true, true},
		{"bundle.gz", false, false},
		{"model.safetensors", false, false},
		{"ggufless", false, false},
	}
	for _, tc := range cases {
		archive, ok := classifyName(tc.name)
		if archive != tc.archive || ok != tc.ok {
			t.Errorf("classifyName(%q) = (%v, %v), want (%v, %v)",
				tc.name, archive, ok, tc.archive, tc.ok)
		}
	}
}
