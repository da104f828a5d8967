package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/amplifier-run/amplifier/internal/atomicfile"
)

// DiskCache persists composed bundles to cacheDir as pretty-printed JSON,
// keyed by a hashed cache key with a sanitized human-readable prefix for
// debugging — ported exactly from original_source's cache/disk.py
// (_cache_key_to_path: sha256(key)[:16] + 30-char sanitized prefix).
type DiskCache struct {
	dir string
}

// NewDiskCache creates a DiskCache rooted at dir, creating it if absent.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	hash := fmt.Sprintf("%x", sum)[:16]

	var prefix strings.Builder
	for i, r := range key {
		if i >= 30 {
			break
		}
		if r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			prefix.WriteRune(r)
		} else {
			prefix.WriteRune('_')
		}
	}
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s.json", prefix.String(), hash))
}

type diskCacheRecord struct {
	Bundle struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"bundle"`
	Includes    []string          `json:"includes"`
	Session     map[string]any    `json:"session"`
	Providers   []map[string]any  `json:"providers"`
	Tools       []map[string]any  `json:"tools"`
	Hooks       []map[string]any  `json:"hooks"`
	Agents      map[string]any    `json:"agents"`
	Context     map[string]string `json:"context"`
	Instruction string            `json:"instruction"`
}

// Get returns the cached bundle for key, or nil if absent or corrupt. A
// corrupt entry is removed (self-healing), matching disk.py's behavior of
// deleting an unreadable cache file rather than failing the caller.
func (c *DiskCache) Get(key string) *Bundle {
	path := c.pathFor(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var rec diskCacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		os.Remove(path)
		return nil
	}

	b := New(rec.Bundle.Name)
	b.Version = rec.Bundle.Version
	b.Description = rec.Bundle.Description
	b.Includes = rec.Includes
	b.Session = rec.Session
	b.Agents = rec.Agents
	b.Instruction = rec.Instruction
	if rec.Context != nil {
		b.Context = rec.Context
	}
	for _, m := range rec.Providers {
		b.Providers = append(b.Providers, moduleEntryFromMap(m))
	}
	for _, m := range rec.Tools {
		b.Tools = append(b.Tools, moduleEntryFromMap(m))
	}
	for _, m := range rec.Hooks {
		b.Hooks = append(b.Hooks, moduleEntryFromMap(m))
	}
	return b
}

// Set writes bundle to the cache under key.
func (c *DiskCache) Set(key string, b *Bundle) error {
	var rec diskCacheRecord
	rec.Bundle.Name = b.Name
	rec.Bundle.Version = b.Version
	rec.Bundle.Description = b.Description
	rec.Includes = b.Includes
	rec.Session = b.Session
	rec.Agents = b.Agents
	rec.Instruction = b.Instruction
	rec.Context = b.Context
	for _, e := range b.Providers {
		rec.Providers = append(rec.Providers, e.toMap())
	}
	for _, e := range b.Tools {
		rec.Tools = append(rec.Tools, e.toMap())
	}
	for _, e := range b.Hooks {
		rec.Hooks = append(rec.Hooks, e.toMap())
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.Write(c.pathFor(key), raw, 0o644)
}

// Clear removes every cached entry.
func (c *DiskCache) Clear() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		os.Remove(m)
	}
	return nil
}

// Registry is the app-facing façade mapping bundle names to source URIs,
// backed by an in-memory cache and an optional DiskCache, grounded on
// pkg/registry/registry.go's locking discipline but specialized: bundle
// lookup needs name→URI indirection and disk-cache fallthrough the
// generic BaseRegistry[T] doesn't model.
type Registry struct {
	loader *Loader
	disk   *DiskCache

	mu      sync.RWMutex
	uris    map[string]string
	loaded  map[string]*Bundle

	watcher      *fsnotify.Watcher
	watchedPaths map[string]string // watched directory -> cache key to invalidate
}

// NewRegistry builds a Registry using loader to resolve/parse bundles and
// (optionally) disk to persist them across process restarts.
func NewRegistry(loader *Loader, disk *DiskCache) *Registry {
	return &Registry{
		loader:       loader,
		disk:         disk,
		uris:         make(map[string]string),
		loaded:       make(map[string]*Bundle),
		watchedPaths: make(map[string]string),
	}
}

// Register associates name with a source URI for later Load calls.
func (r *Registry) Register(name, uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uris[name] = uri
}

// Load returns the bundle for nameOrURI: a registered name is resolved to
// its URI first; otherwise nameOrURI is treated as a URI directly. Loaded
// bundles are cached in memory, and on disk when a DiskCache is attached.
func (r *Registry) Load(ctx context.Context, nameOrURI string) (*Bundle, error) {
	r.mu.RLock()
	uri, isName := r.uris[nameOrURI]
	cached, hasCached := r.loaded[nameOrURI]
	r.mu.RUnlock()

	if hasCached {
		return cached, nil
	}
	if !isName {
		uri = nameOrURI
	}

	if r.disk != nil {
		if b := r.disk.Get(uri); b != nil {
			r.mu.Lock()
			r.loaded[nameOrURI] = b
			r.mu.Unlock()
			return b, nil
		}
	}

	b, err := r.loader.Load(ctx, uri)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.loaded[nameOrURI] = b
	r.mu.Unlock()

	if r.disk != nil {
		if err := r.disk.Set(uri, b); err != nil {
			return b, fmt.Errorf("cache bundle %s to disk: %w", nameOrURI, err)
		}
	}

	if strings.HasPrefix(uri, "file://") || strings.HasPrefix(uri, "/") {
		r.watchForInvalidation(nameOrURI, b.BasePath)
	}

	return b, nil
}

// watchForInvalidation arms an fsnotify watch on a file://-backed bundle's
// source directory so edits invalidate the in-memory cache entry and, when
// a DiskCache is attached, the bundle's disk cache file, grounded on the teacher's use of fsnotify for hot-reloading hector.yaml.
func (r *Registry) watchForInvalidation(cacheKey, basePath string) {
	if basePath == "" {
		return
	}
	if r.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return
		}
		r.watcher = w
		go r.watchLoop()
	}
	_ = r.watcher.Add(basePath)

	r.mu.Lock()
	r.watchedPaths[basePath] = cacheKey
	r.mu.Unlock()
}

func (r *Registry) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			dir := filepath.Dir(event.Name)
			r.mu.Lock()
			if key, watched := r.watchedPaths[dir]; watched {
				delete(r.loaded, key)
				if r.disk != nil {
					uri, isName := r.uris[key]
					if !isName {
						uri = key
					}
					os.Remove(r.disk.pathFor(uri))
				}
			}
			r.mu.Unlock()
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close releases the registry's filesystem watcher, if any.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
