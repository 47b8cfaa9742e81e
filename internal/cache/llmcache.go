// Package cache persists LLM completion bodies on disk so a pipeline run
// that revisits unchanged page content can skip the provider call entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LLMCache stores raw completion bodies, one file per (model, prompt
// digest) key. See internal/dispatch.Dispatcher.Call for how the two
// halves of a key are built from a call's starting model and its request.
type LLMCache struct {
	Dir string
	// StrictPerms, when true, restricts the cache directory to 0700 and
	// cache files to 0600, since cached responses carry extracted document
	// content that may be sensitive at rest.
	StrictPerms bool
}

func (c *LLMCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

// KeyFrom builds a cache key from a starting model id and a prompt digest.
// Two runs over the same model and identical page text/image produce the
// same key, regardless of which model in the fallback chain actually ends
// up serving the request.
func KeyFrom(modelID string, promptDigest string) string {
	h := sha256.Sum256([]byte(modelID + "\n\n" + promptDigest))
	return hex.EncodeToString(h[:])
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the cached completion body for key, if present. A miss is
// reported as ok == false with a nil error: a cold entry is the expected
// steady-state outcome of a fresh cache directory, not a failure.
func (c *LLMCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	// Touch mtime on access so age/LRU-based eviction in invalidate.go
	// treats recently-served entries as fresh.
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes data under key, creating the cache directory if needed.
func (c *LLMCache) Save(_ context.Context, key string, data []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	p := c.pathFor(key)
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	return os.WriteFile(p, data, mode)
}

// Stats reports how many entries the cache currently holds and their
// combined size, for the warm-start log line the CLI emits before a run
// when a cache directory is configured. An unconfigured or not-yet-created cache
// reports zero entries rather than an error.
func (c *LLMCache) Stats() (entries int, totalBytes int64, err error) {
	if c == nil || c.Dir == "" {
		return 0, 0, nil
	}
	walkErr := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries++
		totalBytes += info.Size()
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return 0, 0, walkErr
	}
	return entries, totalBytes, nil
}
