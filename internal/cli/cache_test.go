package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCachePath(t *testing.T) {
	c, _ := newTestCLI(t)

	out, err := execute(c, "", "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}

	want := filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName)
	if got := strings.TrimSpace(string(out)); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
}

func TestCachePathFromConfig(t *testing.T) {
	c, _ := newTestCLI(t)
	dir := filepath.Join(t.TempDir(), "renders")
	cfg := writeConfig(t, "[cache]\ndir = \""+filepath.ToSlash(dir)+"\"\n")

	out, err := execute(c, "", "cache", "path", "--config", cfg)
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != filepath.ToSlash(dir) {
		t.Errorf("cache path = %q, want %q", got, dir)
	}
}

func TestCacheClear(t *testing.T) {
	c, engine := newTestCLI(t)

	if _, err := execute(c, "<p>x</p>", "render", "-"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if n := countFiles(t, filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName)); n != 1 {
		t.Fatalf("cached files = %d, want 1", n)
	}

	if _, err := execute(c, "", "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if n := countFiles(t, filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName)); n != 0 {
		t.Errorf("cached files after clear = %d, want 0", n)
	}

	if _, err := execute(c, "<p>x</p>", "render", "-"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if n := engine.CallCount("convert"); n != 2 {
		t.Errorf("convert calls = %d, want 2 after clearing", n)
	}
}

func TestCacheClearDisabled(t *testing.T) {
	c, _ := newTestCLI(t)
	cfg := writeConfig(t, "[cache]\nbackend = \"none\"\n")

	if _, err := execute(c, "", "cache", "clear", "--config", cfg); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}
