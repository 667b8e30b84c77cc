package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"graft/internal/lsp"
	"graft/internal/project"
)

// Increment when roundPayload format changes.
const roundCacheSchema uint16 = 1

// RoundCache хранит результаты раундов диагностики на диске: один и тот
// же shim-текст под тем же инструментом даёт те же находки.
// Thread-safe for concurrent access.
type RoundCache struct {
	mu  sync.RWMutex
	dir string
}

// roundPayload is the on-disk form of one cached diagnostics round.
type roundPayload struct {
	Schema      uint16
	Diagnostics []lsp.Diagnostic
}

// OpenRoundCache initializes and returns a round cache at the standard
// location (XDG_CACHE_HOME or ~/.cache).
func OpenRoundCache(app string) (*RoundCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &RoundCache{dir: dir}, nil
}

func (c *RoundCache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	// Для удобства читаемости/очистки — подкаталог "rounds".
	return filepath.Join(c.dir, "rounds", hexKey+".mp")
}

// Put writes one round's findings to the cache.
func (c *RoundCache) Put(key project.Digest, diags []lsp.Diagnostic) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(&roundPayload{Schema: roundCacheSchema, Diagnostics: diags}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads one round's findings back. A schema mismatch is a miss,
// not an error.
func (c *RoundCache) Get(key project.Digest) ([]lsp.Diagnostic, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload roundPayload
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != roundCacheSchema {
		return nil, false, nil
	}
	return payload.Diagnostics, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *RoundCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим в фоне
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// RoundKey derives the cache key for one diagnostics round: the shim
// text plus everything about the tool that can change its answers.
func RoundKey(shimText string, cfg lsp.Config) project.Digest {
	return project.Combine(sha256.Sum256([]byte(shimText)), toolFingerprint(cfg))
}

func toolFingerprint(cfg lsp.Config) project.Digest {
	h := sha256.New()
	h.Write([]byte(cfg.Path))
	h.Write([]byte{0})
	for _, a := range cfg.Args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	h.Write([]byte(cfg.LanguageID))
	var out project.Digest
	copy(out[:], h.Sum(nil))
	return out
}
