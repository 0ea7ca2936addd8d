// Package catalog holds the declarative tool tables: one Registry per tool
// server, each mapping a tool name to its upstream method and parameters.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lukman83/serpstat-mcp/internal/schema"
)

var (
	// ErrUnknownTool is returned by Registry.Lookup for undeclared names.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrUnknownServer is returned by Catalog.Server for undeclared servers.
	ErrUnknownServer = errors.New("unknown server")
)

// Format is the upstream response format of a tool.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Tool is one callable entry. It is immutable after load.
type Tool struct {
	Name        string         `yaml:"name"`
	Method      string         `yaml:"method"`
	Description string         `yaml:"description"`
	Format      Format         `yaml:"format,omitempty"`
	Params      []schema.Param `yaml:"params"`
}

// CSV reports whether the tool expects a plain-text export.
func (t Tool) CSV() bool { return t.Format == FormatCSV }

// Param returns the declared param called name.
func (t Tool) Param(name string) (*schema.Param, bool) {
	for i := range t.Params {
		if t.Params[i].Name == name {
			return &t.Params[i], true
		}
	}
	return nil, false
}

// Meta describes a server. BaseURL overrides the client's default endpoint
// for APIs hosted elsewhere.
type Meta struct {
	Server      string `yaml:"server"`
	Description string `yaml:"description"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// Registry is the tool table of a single server.
type Registry struct {
	meta  Meta
	tools []Tool
	index map[string]int
}

// NewRegistry validates tools and indexes them by name. Param declarations
// are compiled in place.
func NewRegistry(meta Meta, tools []Tool) (*Registry, error) {
	server := meta.Server
	if server == "" {
		return nil, errors.New("registry without server name")
	}
	r := &Registry{
		meta:  meta,
		tools: tools,
		index: make(map[string]int, len(tools)),
	}
	for i := range tools {
		t := &tools[i]
		if t.Name == "" {
			return nil, fmt.Errorf("%s: tool #%d: missing name", server, i)
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("%s: tool %q declared twice", server, t.Name)
		}
		if t.Method == "" {
			return nil, fmt.Errorf("%s: tool %q: missing method", server, t.Name)
		}
		switch t.Format {
		case "":
			t.Format = FormatJSON
		case FormatJSON, FormatCSV:
		default:
			return nil, fmt.Errorf("%s: tool %q: unknown format %q", server, t.Name, t.Format)
		}
		if err := schema.Compile(t.Params); err != nil {
			return nil, fmt.Errorf("%s: tool %q: %w", server, t.Name, err)
		}
		r.index[t.Name] = i
	}
	return r, nil
}

func (r *Registry) Server() string      { return r.meta.Server }
func (r *Registry) Description() string { return r.meta.Description }
func (r *Registry) BaseURL() string     { return r.meta.BaseURL }
func (r *Registry) Len() int            { return len(r.tools) }

// Lookup finds a tool by name. The error wraps ErrUnknownTool.
func (r *Registry) Lookup(name string) (Tool, error) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return r.tools[i], nil
}

// Tools lists tools in declared order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Catalog groups the registries of every server.
type Catalog struct {
	servers map[string]*Registry
}

// New builds a Catalog, rejecting duplicate server names.
func New(registries ...*Registry) (*Catalog, error) {
	c := &Catalog{servers: make(map[string]*Registry, len(registries))}
	for _, r := range registries {
		name := r.Server()
		if _, dup := c.servers[name]; dup {
			return nil, fmt.Errorf("server %q declared twice", name)
		}
		c.servers[name] = r
	}
	return c, nil
}

// Server returns the registry of the named server.
func (c *Catalog) Server(name string) (*Registry, error) {
	r, ok := c.servers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownServer, name, c.Servers())
	}
	return r, nil
}

// Servers lists server names sorted alphabetically.
func (c *Catalog) Servers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
