// Package prompts holds the catalog of text utilities and turns user input
// into model prompts.
package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

var (
	// ErrUnknownUtility is returned for utility ids not in the catalog
	ErrUnknownUtility = errors.New("unknown utility")
	// ErrImageNotAccepted is returned when an image is sent to a text-only utility
	ErrImageNotAccepted = errors.New("utility does not accept images")
	// ErrImageRequired is returned when an image utility is called without one
	ErrImageRequired = errors.New("utility requires an image")
	// ErrEmptyInput is returned when a text utility receives no input
	ErrEmptyInput = errors.New("input is empty")
)

// Utility is one prompt template offered to users
type Utility struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Description       string          `json:"description,omitempty" yaml:"description"`
	Category          models.Category `json:"category" yaml:"category"`
	SystemInstruction string          `json:"-" yaml:"system"`
	Template          string          `json:"-" yaml:"template"`
	AcceptsImage      bool            `json:"accepts_image" yaml:"accepts_image"`

	tmpl *template.Template
}

// Prompt is an assembled request for the generator
type Prompt struct {
	UtilityID string
	System    string
	User      string
	Image     []byte
	ImageMIME string
}

// Catalog is the read-only set of utilities
type Catalog struct {
	utilities map[string]*Utility
}

type catalogFile struct {
	Utilities []Utility `yaml:"utilities"`
}

// NewCatalog validates and compiles utilities
func NewCatalog(utilities []Utility) (*Catalog, error) {
	c := &Catalog{utilities: make(map[string]*Utility, len(utilities))}
	for i := range utilities {
		u := utilities[i]
		if u.ID == "" {
			return nil, fmt.Errorf("utility %d has no id", i)
		}
		if _, dup := c.utilities[u.ID]; dup {
			return nil, fmt.Errorf("duplicate utility %q", u.ID)
		}
		if !u.Category.IsFeature() {
			return nil, fmt.Errorf("utility %q: category %q is not a feature category", u.ID, u.Category)
		}
		tmpl, err := template.New(u.ID).Option("missingkey=error").Parse(u.Template)
		if err != nil {
			return nil, fmt.Errorf("utility %q: %w", u.ID, err)
		}
		u.tmpl = tmpl
		c.utilities[u.ID] = &u
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewCatalog(f.Utilities)
}

// LoadOrDefault loads path when set, otherwise the built-in catalog
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalog(path)
}

// Get returns a utility by id
func (c *Catalog) Get(id string) (*Utility, error) {
	u, ok := c.utilities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUtility, id)
	}
	return u, nil
}

// List returns all utilities sorted by id
func (c *Catalog) List() []*Utility {
	out := make([]*Utility, 0, len(c.utilities))
	for _, u := range c.utilities {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assemble renders a utility's template with the user's input
func (c *Catalog) Assemble(utilityID, input string, image []byte, imageMIME string) (*Prompt, error) {
	u, err := c.Get(utilityID)
	if err != nil {
		return nil, err
	}

	switch {
	case len(image) > 0 && !u.AcceptsImage:
		return nil, ErrImageNotAccepted
	case len(image) == 0 && u.AcceptsImage:
		return nil, ErrImageRequired
	case len(image) == 0 && strings.TrimSpace(input) == "":
		return nil, ErrEmptyInput
	}

	var buf bytes.Buffer
	if err := u.tmpl.Execute(&buf, struct{ Input string }{Input: strings.TrimSpace(input)}); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", u.ID, err)
	}

	p := &Prompt{
		UtilityID: u.ID,
		System:    u.SystemInstruction,
		User:      buf.String(),
	}
	if len(image) > 0 {
		p.Image = image
		p.ImageMIME = imageMIME
		if p.ImageMIME == "" {
			p.ImageMIME = "image/png"
		}
	}
	return p, nil
}
