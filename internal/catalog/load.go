package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// file is the on-disk layout of one server catalog. Shared holds YAML
// anchors reused across tools and is otherwise ignored.
type file struct {
	Meta   `yaml:",inline"`
	Shared yaml.Node `yaml:"shared,omitempty"`
	Tools  []Tool    `yaml:"tools"`
}

// Load parses the catalogs compiled into the binary.
func Load() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS parses every *.yaml file at the root of fsys.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("no catalog files found")
	}

	registries := make([]*Registry, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		r, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		registries = append(registries, r)
	}
	return New(registries...)
}

// Parse decodes a single catalog document. Unknown keys are rejected so a
// typo in a constraint name cannot silently disable it.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty catalog")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewRegistry(f.Meta, f.Tools)
}
