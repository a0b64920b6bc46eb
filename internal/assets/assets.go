// Package assets resolves animation frame files from prioritized sources and
// decodes them for the preload cache.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a frame id matches no source file.
var ErrNotFound = errors.New("assets: frame not found")

// Source is one tree of frame folders. Higher Priority wins when two sources
// provide the same animation state.
type Source struct {
	Name     string
	FS       fs.FS
	Priority int
}

// DirSource builds a Source over a directory on disk.
func DirSource(name, dir string, priority int) Source {
	return Source{Name: name, FS: os.DirFS(dir), Priority: priority}
}

// Frame is one image file discovered in a source.
type Frame struct {
	ID       string // "<source>/<path>"
	Source   string
	Priority int
	Path     string // slash-separated path inside the source
	Folder   string // name of the directory holding the file
}

// Manager resolves frame ids against its sources and caches file bytes.
type Manager struct {
	sources []Source
	cache   *Cache
	mu      sync.RWMutex
}

// NewManager creates a manager over the given sources.
func NewManager(sources ...Source) *Manager {
	m := &Manager{cache: NewCache()}
	for _, s := range sources {
		m.AddSource(s)
	}
	return m
}

// AddSource registers a source. Names must be unique; a later source with
// the same name replaces the earlier one.
func (m *Manager) AddSource(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.sources {
		if existing.Name == s.Name {
			m.sources[i] = s
			return
		}
	}
	m.sources = append(m.sources, s)
}

// Sources returns the registered sources.
func (m *Manager) Sources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Source(nil), m.sources...)
}

// FrameID joins a source name and path into a frame id.
func FrameID(source, p string) string {
	return source + "/" + p
}

// SplitID separates a frame id into its source name and path.
func SplitID(id string) (source, p string, ok bool) {
	source, p, ok = strings.Cut(id, "/")
	if !ok || source == "" || p == "" {
		return "", "", false
	}
	return source, p, true
}

func (m *Manager) source(name string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Load returns the raw bytes of a frame through the byte cache.
func (m *Manager) Load(id string) ([]byte, error) {
	if data, ok := m.cache.Get(id); ok {
		return data, nil
	}
	data, err := m.read(id)
	if err != nil {
		return nil, err
	}
	m.cache.Set(id, data)
	return data, nil
}

// read loads a frame straight from its source.
func (m *Manager) read(id string) ([]byte, error) {
	name, p, ok := SplitID(id)
	if !ok {
		return nil, fmt.Errorf("%w: malformed id %q", ErrNotFound, id)
	}
	src, ok := m.source(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrNotFound, name)
	}

	data, err := fs.ReadFile(src.FS, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	return data, nil
}

// Image loads and decodes a frame.
func (m *Manager) Image(id string) (image.Image, error) {
	data, err := m.Load(id)
	if err != nil {
		return nil, err
	}
	return decodeFrame(id, data)
}

// Fetch implements preload.Fetcher. The preload cache keeps the decoded
// image, so the bytes skip the byte cache.
func (m *Manager) Fetch(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := m.read(id)
	if err != nil {
		return nil, err
	}
	return decodeFrame(id, data)
}

func decodeFrame(id string, data []byte) (image.Image, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", id, err)
	}
	return img, nil
}

// Frames lists every image file in every source, sorted by id.
func (m *Manager) Frames() ([]Frame, error) {
	var frames []Frame
	for _, src := range m.Sources() {
		err := fs.WalkDir(src.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != "." && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !IsImage(p) {
				return nil
			}
			frames = append(frames, Frame{
				ID:       FrameID(src.Name, p),
				Source:   src.Name,
				Priority: src.Priority,
				Path:     p,
				Folder:   path.Base(path.Dir(p)),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning source %s: %w", src.Name, err)
		}
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].ID < frames[j].ID })
	return frames, nil
}

// Invalidate drops cached bytes so the next Load reads from the sources.
func (m *Manager) Invalidate() {
	m.cache.Clear()
}

// CacheStats returns byte cache hits and misses.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// Cache is a simple in-memory cache for frame bytes.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear empties the cache and resets its counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
