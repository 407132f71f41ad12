// Package ovmf resolves the firmware variable store template that matches an
// OVMF code file.
package ovmf

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// DefaultDir is where distributions install OVMF images.
const DefaultDir = "/usr/share/OVMF"

// OVMF_CODE[_4M][.secboot][.strictnx].fd and friends.
var codeRE = regexp.MustCompile(`^OVMF_CODE(_\d+M)?((?:\.[a-z]+)*)\.fd$`)

// Resolver maps code files to variable store files found in Dir.
type Resolver struct {
	Dir string

	// Exists defaults to os.Stat.
	Exists func(path string) bool
}

func (r *Resolver) dir() string {
	if r.Dir == "" {
		return DefaultDir
	}
	return r.Dir
}

func (r *Resolver) exists(path string) bool {
	if r.Exists != nil {
		return r.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the absolute path of a firmware file in Dir.
func (r *Resolver) Path(name string) string {
	return filepath.Join(r.dir(), name)
}

// VarsFile returns the variable store for a code file name or path, or ""
// when the name is not an OVMF code file or no candidate exists.
//
// Secure boot code files (secboot, ms) prefer the Microsoft-enrolled store
// and fall back to the plain one. Snakeoil code files prefer their own store
// and fall back to the Microsoft-enrolled one.
func (r *Resolver) VarsFile(code string) string {
	m := codeRE.FindStringSubmatch(filepath.Base(code))
	if m == nil {
		return ""
	}
	size := m[1]
	tags := strings.Split(strings.TrimPrefix(m[2], "."), ".")

	var variants []string
	switch {
	case contains(tags, "snakeoil"):
		variants = []string{".snakeoil", ".ms"}
	case contains(tags, "secboot"), contains(tags, "ms"):
		variants = []string{".ms", ""}
	default:
		variants = []string{""}
	}

	for _, v := range variants {
		candidate := filepath.Join(r.dir(), "OVMF_VARS"+size+v+".fd")
		if r.exists(candidate) {
			return candidate
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Cache memoizes VarsFile lookups until Invalidate is called.
type Cache struct {
	Resolver *Resolver

	mu      sync.Mutex
	entries map[string]string
}

// NewCache returns a cache in front of a resolver for dir.
func NewCache(dir string) *Cache {
	return &Cache{Resolver: &Resolver{Dir: dir}}
}

// VarsFile returns the memoized result of Resolver.VarsFile.
func (c *Cache) VarsFile(code string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[code]; ok {
		return v
	}
	v := c.Resolver.VarsFile(code)
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[code] = v
	return v
}

// Path returns the absolute path of a firmware file.
func (c *Cache) Path(name string) string {
	return c.Resolver.Path(name)
}

// Invalidate forgets every memoized lookup.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}
