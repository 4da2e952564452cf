package cache

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/tickle/compiler"
	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/bytecode"
)

func compileFn(src string) func() (*bytecode.ByteCode, error) {
	return func() (*bytecode.ByteCode, error) { return compiler.Compile(src) }
}

func TestMemoryCache(t *testing.T) {
	c := New()
	key := Key(KindScript, "set x 1", nil, config.DefaultCompiler())

	if _, ok := c.Get(key); ok {
		t.Fatal("Expected a miss on an empty cache")
	}
	first, err := c.GetOrCompile(key, compileFn("set x 1"))
	if err != nil {
		t.Fatalf("GetOrCompile error: %v", err)
	}
	second, err := c.GetOrCompile(key, func() (*bytecode.ByteCode, error) {
		t.Error("compile called on a hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompile error: %v", err)
	}
	if first != second {
		t.Error("Expected the cached unit on the second call")
	}
	st := c.Stats()
	if st.Compiled != 1 || st.Hits != 1 || st.Misses != 2 {
		t.Errorf("Unexpected stats %+v", st)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCompileErrorNotCached(t *testing.T) {
	c := New()
	key := Key(KindScript, "set x {", nil, config.DefaultCompiler())
	_, err := c.GetOrCompile(key, compileFn("set x {"))
	var ce *compiler.Error
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *compiler.Error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected nothing cached, got %d", c.Len())
	}
}

func TestKeyDependsOnSettings(t *testing.T) {
	cfg := config.DefaultCompiler()
	a := Key(KindScript, "set x 1", nil, cfg)
	b := Key(KindProc, "set x 1", nil, cfg)
	c := Key(KindProc, "set x 1", []string{"x"}, cfg)
	cfg.NarrowJumpLimit = 0
	d := Key(KindScript, "set x 1", nil, cfg)
	seen := map[string]bool{}
	for _, k := range []string{a, b, c, d} {
		if seen[k] {
			t.Errorf("Duplicate key %s", k)
		}
		seen[k] = true
	}
	if a != Key(KindScript, "set x 1", nil, config.DefaultCompiler()) {
		t.Error("Expected keys to be stable")
	}
}

func TestPersistentCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	key := Key(KindProc, "incr n", []string{"n"}, config.DefaultCompiler())
	orig, err := c.GetOrCompile(key, func() (*bytecode.ByteCode, error) {
		return compiler.CompileProcBody("incr n", []string{"n"})
	})
	if err != nil {
		t.Fatalf("GetOrCompile error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer c.Close()
	if n, err := c.Stored(); err != nil || n != 1 {
		t.Errorf("Stored = (%d, %v), want (1, nil)", n, err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected the unit to survive a reopen")
	}
	if got.ID != orig.ID {
		t.Errorf("ID = %s, want %s", got.ID, orig.ID)
	}
	if string(got.Code) != string(orig.Code) {
		t.Errorf("Expected identical code after reload")
	}
	if st := c.Stats(); st.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", st.Loaded)
	}

	if err := c.Purge(); err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("Expected a miss after Purge")
	}
	if n, _ := c.Stored(); n != 0 {
		t.Errorf("Stored after Purge = %d, want 0", n)
	}
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(nil)
	if err != nil || c.Path() != "" {
		t.Fatalf("Expected a memory cache, got %q, %v", c.Path(), err)
	}

	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Cache.Enabled = true
	c, err = FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	defer c.Close()
	if c.Path() != cfg.CachePath() {
		t.Errorf("Path() = %q, want %q", c.Path(), cfg.CachePath())
	}
}
