package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoPages reports a manifest without a top-level "pages" list.
	ErrNoPages = errors.New("manifest has no pages list")
	// ErrInvalidName reports a page name that cannot be used as a single path segment.
	ErrInvalidName = errors.New("invalid page name")
)

// Format identifies the encoding of a manifest file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// Page describes one site page.
type Page struct {
	Name        string         `yaml:"name"`
	Title       string         `yaml:"title,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Params      map[string]any `yaml:",inline"`
}

// Manifest is the ordered list of pages that drives a build.
type Manifest struct {
	Pages []Page `json:"pages" yaml:"pages"`
}

// Names returns the page names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Pages))
	for _, p := range m.Pages {
		names = append(names, p.Name)
	}
	return names
}

// Lookup returns the page with the given name.
func (m *Manifest) Lookup(name string) (*Page, bool) {
	for i := range m.Pages {
		if m.Pages[i].Name == name {
			return &m.Pages[i], true
		}
	}
	return nil, false
}

// Load reads and validates a manifest, picking the decoder from the file extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data, format, path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// FormatFor maps a file name to a manifest format.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension %q", filepath.Ext(path))
	}
}

// Parse decodes manifest bytes. The filename is only used in HCL diagnostics.
func Parse(data []byte, format Format, filename string) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	switch format {
	case FormatJSON:
		m, err = parseJSON(data)
	case FormatYAML:
		m, err = parseYAML(data)
	case FormatHCL:
		m, err = parseHCL(data, filename)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks every page name. Duplicates are left to the graph builder.
func (m *Manifest) Validate() error {
	for i, p := range m.Pages {
		if err := ValidateName(p.Name); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
	}
	return nil
}

// ValidateName reports whether name is usable as a directory and entry name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

func parseJSON(data []byte) (*Manifest, error) {
	var raw struct {
		Pages *[]Page `json:"pages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if raw.Pages == nil {
		return nil, ErrNoPages
	}
	return &Manifest{Pages: *raw.Pages}, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	var raw struct {
		Pages *[]Page `yaml:"pages"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if raw.Pages == nil {
		return nil, ErrNoPages
	}
	return &Manifest{Pages: *raw.Pages}, nil
}

// UnmarshalJSON keeps unknown page keys in Params.
func (p *Page) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*p = Page{}
	for key, value := range fields {
		switch key {
		case "name", "title", "description":
			s, ok := value.(string)
			if !ok && value != nil {
				return fmt.Errorf("page field %q must be a string", key)
			}
			switch key {
			case "name":
				p.Name = s
			case "title":
				p.Title = s
			default:
				p.Description = s
			}
		default:
			if p.Params == nil {
				p.Params = make(map[string]any)
			}
			p.Params[key] = value
		}
	}
	return nil
}

// MarshalJSON writes Params back as sibling keys.
func (p Page) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Params)+3)
	for key, value := range p.Params {
		out[key] = value
	}
	out["name"] = p.Name
	if p.Title != "" {
		out["title"] = p.Title
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	return json.Marshal(out)
}
