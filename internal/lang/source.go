package lang

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

//go:embed bundles
var embedded embed.FS

const bundleFile = "model.yaml"

// Header identifies a bundle without loading it.
type Header struct {
	ID    string   `yaml:"id"`
	Names []string `yaml:"names"`
}

// Source supplies language model bundles by id.
type Source interface {
	Catalog() ([]Header, error)
	Bundle(id string) (*Bundle, error)
	Dictionary(id, name string) ([]DictEntry, error)
}

// FSSource reads bundles laid out as <id>/model.yaml and <id>/<dict>.yaml.
type FSSource struct {
	fsys fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// DirSource reads bundles from a directory on disk.
func DirSource(dir string) *FSSource {
	return NewFSSource(os.DirFS(dir))
}

// Embedded returns the bundles compiled into the binary.
func Embedded() *FSSource {
	sub, err := fs.Sub(embedded, "bundles")
	if err != nil {
		panic(fmt.Sprintf("embedded bundles: %v", err))
	}
	return NewFSSource(sub)
}

func (s *FSSource) Catalog() ([]Header, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	headers := make([]Header, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(s.fsys, path.Join(e.Name(), bundleFile))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading bundle %s: %w", e.Name(), err)
		}
		var h Header
		if err := yaml.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("parsing bundle header %s: %w", e.Name(), err)
		}
		// The directory name is the id; the id key inside the file is informative.
		h.ID = e.Name()
		headers = append(headers, h)
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].ID < headers[j].ID })
	return headers, nil
}

func (s *FSSource) Bundle(id string) (*Bundle, error) {
	data, err := fs.ReadFile(s.fsys, path.Join(id, bundleFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("bundle %s: %w", id, apperrors.ErrModelNotFound)
		}
		return nil, fmt.Errorf("reading bundle %s: %w", id, err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing bundle %s: %w", id, err)
	}
	b.ID = id
	return &b, nil
}

func (s *FSSource) Dictionary(id, name string) ([]DictEntry, error) {
	data, err := fs.ReadFile(s.fsys, path.Join(id, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading dictionary %s/%s: %v: %w", id, name, err, apperrors.ErrDictionaryMissing)
	}
	var entries []DictEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing dictionary %s/%s: %v: %w", id, name, err, apperrors.ErrDictionaryMissing)
	}
	return entries, nil
}

// Layered consults sources in order; the first source that knows an id wins.
type Layered []Source

func (l Layered) Catalog() ([]Header, error) {
	seen := make(map[string]struct{})
	var out []Header
	for _, s := range l {
		headers, err := s.Catalog()
		if err != nil {
			return nil, err
		}
		for _, h := range headers {
			if _, dup := seen[h.ID]; dup {
				continue
			}
			seen[h.ID] = struct{}{}
			out = append(out, h)
		}
	}
	return out, nil
}

func (l Layered) owner(id string) (Source, error) {
	for _, s := range l {
		headers, err := s.Catalog()
		if err != nil {
			return nil, err
		}
		for _, h := range headers {
			if h.ID == id {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("bundle %s: %w", id, apperrors.ErrModelNotFound)
}

func (l Layered) Bundle(id string) (*Bundle, error) {
	s, err := l.owner(id)
	if err != nil {
		return nil, err
	}
	return s.Bundle(id)
}

func (l Layered) Dictionary(id, name string) ([]DictEntry, error) {
	s, err := l.owner(id)
	if err != nil {
		return nil, err
	}
	return s.Dictionary(id, name)
}
