package cpu

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultMapDir is where libvirt installs its CPU map.
const DefaultMapDir = "/usr/share/libvirt/cpu_map"

// architectures whose models virsh can list
var catalogArches = map[string]bool{"x86": true, "ppc64": true}

type cpuMapFile struct {
	Models []struct {
		Name string `xml:"name,attr"`
	} `xml:"model"`
}

// Catalog lists the CPU models libvirt knows. Models are read from disk on
// first use and kept until Invalidate is called.
type Catalog struct {
	Dir string

	mu     sync.Mutex
	models map[string]bool
}

// NewCatalog returns a catalog reading the CPU map in dir.
func NewCatalog(dir string) *Catalog {
	if dir == "" {
		dir = DefaultMapDir
	}
	return &Catalog{Dir: dir}
}

// Has reports whether name is a known CPU model. A catalog that cannot be
// read knows no models.
func (c *Catalog) Has(name string) bool {
	models, err := c.load()
	if err != nil {
		return false
	}
	return models[name]
}

// Models returns the known model names, sorted.
func (c *Catalog) Models() ([]string, error) {
	models, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(models))
	for name := range models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate drops the cached models so the next call rereads the map.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
}

func (c *Catalog) load() (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models != nil {
		return c.models, nil
	}

	data, err := os.ReadFile(filepath.Join(c.Dir, "index.xml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu map index: %w", err)
	}
	includes, err := indexIncludes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cpu map index: %w", err)
	}

	models := make(map[string]bool)
	for _, filename := range includes {
		content, err := os.ReadFile(filepath.Join(c.Dir, filename))
		if err != nil {
			continue
		}
		var file cpuMapFile
		if err := xml.Unmarshal(content, &file); err != nil {
			continue
		}
		// features and vendors files hold no models
		for _, m := range file.Models {
			if m.Name != "" {
				models[m.Name] = true
			}
		}
	}

	c.models = models
	return models, nil
}

// indexIncludes returns the files included, at any depth, by the
// architectures the catalog covers.
func indexIncludes(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		files []string
		arch  string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "arch":
				arch = attr(el, "name")
			case "include":
				if catalogArches[arch] {
					if f := attr(el, "filename"); f != "" {
						files = append(files, f)
					}
				}
			}
		case xml.EndElement:
			if el.Name.Local == "arch" {
				arch = ""
			}
		}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
