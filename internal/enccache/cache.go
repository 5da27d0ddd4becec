// Package enccache persists computed face encodings across restarts so that
// unchanged reference images are never re-encoded. Entries are keyed by person
// name and carry a content-hash manifest of the image files they were derived
// from; any divergence invalidates the whole entry for that person.
package enccache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// entry is one person's cached state: the hash manifest of the reference
// images and the encodings computed from them.
type entry struct {
	Hashes    map[string]string  `cbor:"hashes"`
	Encodings []facedet.Encoding `cbor:"encodings"`
}

// Cache is a durable person → encodings store backed by a single CBOR file.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]entry
}

// Open loads the cache file at path, creating an empty cache when the file
// does not exist. A corrupt or unreadable file is discarded and replaced on
// the next store; cached encodings are always recomputable.
func Open(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[string]entry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading encoding cache %s: %w", path, err)
	}

	var entries map[string]entry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		// Stale or corrupt cache file. Start fresh; everything recomputes.
		return c, nil
	}
	c.entries = entries
	return c, nil
}

// GetEncodings returns the cached encodings for a person and whether they
// need to be recomputed. needsUpdate is true when no entry exists or when the
// stored hash manifest differs in any way from the current file contents.
func (c *Cache) GetEncodings(name string, imagePaths []string) ([]facedet.Encoding, bool) {
	hashes, err := hashFiles(imagePaths)
	if err != nil {
		return nil, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[name]
	if !ok || !manifestsEqual(cached.Hashes, hashes) {
		return nil, true
	}
	return cached.Encodings, false
}

// StoreEncodings records the encodings for a person together with the content
// hashes of the images they were computed from, and persists the cache file.
func (c *Cache) StoreEncodings(name string, imagePaths []string, encodings []facedet.Encoding) error {
	hashes, err := hashFiles(imagePaths)
	if err != nil {
		return fmt.Errorf("hashing reference images for %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[name] = entry{Hashes: hashes, Encodings: encodings}
	return c.save()
}

// RemovePerson deletes a person's entry and persists the cache file.
func (c *Cache) RemovePerson(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[name]; !ok {
		return nil
	}
	delete(c.entries, name)
	return c.save()
}

// Names returns all cached person names, sorted.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops all entries and persists the now-empty cache file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	return c.save()
}

// save writes the cache file. Callers must hold c.mu.
func (c *Cache) save() error {
	data, err := cbor.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing encoding cache %s: %w", c.path, err)
	}
	return nil
}

// hashFiles computes the content hash of every path. Any unreadable file
// fails the whole manifest.
func hashFiles(paths []string) (map[string]string, error) {
	hashes := make(map[string]string, len(paths))
	for _, p := range paths {
		h, err := hashFile(p)
		if err != nil {
			return nil, err
		}
		hashes[p] = h
	}
	return hashes, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func manifestsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
