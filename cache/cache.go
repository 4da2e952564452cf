// Package cache keeps compiled units so that a script or procedure body is
// compiled once. Entries live in memory and, when a database path is given,
// in a SQLite file that survives the process.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/bytecode"
)

// Kind says how the source of a unit was compiled.
type Kind string

const (
	KindScript Kind = "script"
	KindProc   Kind = "proc"
	KindExpr   Kind = "expr"
)

// Stats counts cache traffic.
type Stats struct {
	Hits     int
	Misses   int
	Loaded   int // memory misses served from the database
	Compiled int
}

// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	mem   map[string]*bytecode.ByteCode
	db    *sql.DB
	path  string
	log   commonlog.Logger
	stats Stats
}

// New returns a memory-only cache.
func New() *Cache {
	return &Cache{
		mem: make(map[string]*bytecode.ByteCode),
		log: commonlog.GetLogger("tickle.cache"),
	}
}

// Open returns a cache backed by the SQLite database at path, creating the
// file and its directory if needed.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS units (
		key     TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		id      TEXT NOT NULL,
		data    BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	c := New()
	c.db = db
	c.path = path
	return c, nil
}

// FromConfig opens the cache a configuration asks for: persistent when
// enabled, memory-only otherwise.
func FromConfig(cfg *config.Config) (*Cache, error) {
	if cfg == nil || !cfg.Cache.Enabled {
		return New(), nil
	}
	return Open(cfg.CachePath())
}

// Close releases the database, if any.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database file, or "" for a memory-only cache.
func (c *Cache) Path() string { return c.path }

// Key derives the cache key of a unit. Compiler settings are part of the key
// because they change the emitted code.
func Key(kind Kind, src string, params []string, cfg config.Compiler) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%+v\x00", kind, bytecode.FormatVersion, strings.Join(params, "\x01"), cfg)
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// Get returns the unit stored under key.
func (c *Cache) Get(key string) (*bytecode.ByteCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bc, ok := c.mem[key]; ok {
		c.stats.Hits++
		return bc, true
	}
	if bc, err := c.load(key); err == nil {
		c.mem[key] = bc
		c.stats.Hits++
		c.stats.Loaded++
		return bc, true
	} else if !errors.Is(err, sql.ErrNoRows) && c.db != nil {
		c.log.Warningf("cache read %s: %s", shortKey(key), err.Error())
	}
	c.stats.Misses++
	return nil, false
}

// Put stores bc under key.
func (c *Cache) Put(key string, bc *bytecode.ByteCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = bc
	return c.store(key, bc)
}

// GetOrCompile returns the unit under key, compiling and storing it on a
// miss. A failed store is logged; the compiled unit is still returned.
func (c *Cache) GetOrCompile(key string, compile func() (*bytecode.ByteCode, error)) (*bytecode.ByteCode, error) {
	if bc, ok := c.Get(key); ok {
		return bc, nil
	}
	bc, err := compile()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.stats.Compiled++
	c.mem[key] = bc
	err = c.store(key, bc)
	c.mu.Unlock()
	if err != nil {
		c.log.Warningf("cache write %s: %s", shortKey(key), err.Error())
	}
	return bc, nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of units held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mem)
}

// Stored returns the number of units in the database, or Len for a
// memory-only cache.
func (c *Cache) Stored() (int, error) {
	if c.db == nil {
		return c.Len(), nil
	}
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM units").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting units: %w", err)
	}
	return n, nil
}

// Purge drops every entry, in memory and on disk.
func (c *Cache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = make(map[string]*bytecode.ByteCode)
	if c.db == nil {
		return nil
	}
	if _, err := c.db.Exec("DELETE FROM units"); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Database
// ---------------------------------------------------------------------------

func (c *Cache) load(key string) (*bytecode.ByteCode, error) {
	if c.db == nil {
		return nil, sql.ErrNoRows
	}
	var version int
	var data []byte
	err := c.db.QueryRow("SELECT version, data FROM units WHERE key = ?", key).Scan(&version, &data)
	if err != nil {
		return nil, err
	}
	if version != int(bytecode.FormatVersion) {
		return nil, sql.ErrNoRows
	}
	bc, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding unit: %w", err)
	}
	return bc, nil
}

func (c *Cache) store(key string, bc *bytecode.ByteCode) error {
	if c.db == nil {
		return nil
	}
	data, err := bytecode.Marshal(bc)
	if err != nil {
		return fmt.Errorf("encoding unit: %w", err)
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO units (key, version, id, data, created) VALUES (?, ?, ?, ?, ?)",
		key, int(bc.Version), bc.ID.String(), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving unit: %w", err)
	}
	return nil
}
