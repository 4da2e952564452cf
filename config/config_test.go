package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[compiler]
narrow-jump-limit = 20
jump-table-min-arms = 4
specialize = false

[cache]
enabled = true
path = "build/cache.db"

[log]
verbosity = 2
file = "tickle.log"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Compiler.NarrowJumpLimit != 20 {
		t.Errorf("narrow-jump-limit = %d, want 20", c.Compiler.NarrowJumpLimit)
	}
	if c.Compiler.JumpTableMinArms != 4 {
		t.Errorf("jump-table-min-arms = %d, want 4", c.Compiler.JumpTableMinArms)
	}
	if c.Compiler.Specialize {
		t.Error("specialize = true, want false")
	}
	if c.Compiler.MaxNestingDepth != 1000 {
		t.Errorf("max-nesting-depth = %d, want default 1000", c.Compiler.MaxNestingDepth)
	}
	if !c.Cache.Enabled {
		t.Error("cache.enabled = false, want true")
	}
	if want := filepath.Join(c.Dir, "build", "cache.db"); c.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", c.CachePath(), want)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", c.Log.Verbosity)
	}
	if p := c.LogFile(); p == nil || *p != filepath.Join(c.Dir, "tickle.log") {
		t.Errorf("LogFile() = %v, want tickle.log under %s", p, c.Dir)
	}
}

func TestLoadRejectsBadLimit(t *testing.T) {
	dir := t.TempDir()
	content := "[compiler]\nnarrow-jump-limit = 500\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "narrow-jump-limit") {
		t.Errorf("Expected narrow-jump-limit error, got %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[compiler\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Expected parse error")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[compiler]\njump-table-min-arms = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Compiler.JumpTableMinArms != 3 {
		t.Errorf("jump-table-min-arms = %d, want 3", c.Compiler.JumpTableMinArms)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Compiler != DefaultCompiler() {
		t.Errorf("Compiler = %+v, want defaults", c.Compiler)
	}
}
