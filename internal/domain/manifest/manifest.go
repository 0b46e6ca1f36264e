package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	// FileName is the manifest file inside every package directory
	FileName = "manifest.json"
	// DefaultScript is the entry script used when the manifest names none
	DefaultScript = "code.js"
	// MaxSchema is the newest manifest schema this host understands
	MaxSchema = 1
)

// Kind is the package variant
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindTracker Kind = "tracker"
)

// Category is the storage and directory grouping of a kind
type Category string

const (
	CategorySources  Category = "sources"
	CategoryTrackers Category = "trackers"
)

// Validation errors
var (
	ErrNotFound       = errors.New("manifest: not found")
	ErrMalformed      = errors.New("manifest: malformed JSON")
	ErrMissingID      = errors.New("manifest: id is required")
	ErrInvalidID      = errors.New("manifest: id must be a safe directory name")
	ErrMissingName    = errors.New("manifest: name is required")
	ErrMissingVersion = errors.New("manifest: version is required")
	ErrInvalidKind    = errors.New("manifest: unknown type")
	ErrSchemaTooNew   = errors.New("manifest: schema is newer than supported")
	ErrInvalidScript  = errors.New("manifest: script must be a .js file inside the package")
	ErrScriptMissing  = errors.New("manifest: entry script missing or unreadable")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Manifest is the metadata of one package. It is immutable once loaded.
type Manifest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Author  string `json:"author,omitempty"`
	Icon    string `json:"icon,omitempty"`
	Version string `json:"version"`
	Kind    Kind   `json:"type"`
	Schema  *int   `json:"schema,omitempty"`
	Script  string `json:"script,omitempty"`
}

// Package is a validated manifest plus the entry script text
type Package struct {
	Manifest Manifest
	Dir      string
	Source   string
}

// ParseKind maps a type tag to a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindImage, KindVideo, KindTracker:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Category returns the grouping for k
func (k Kind) Category() Category {
	if k == KindTracker {
		return CategoryTrackers
	}
	return CategorySources
}

// IsSource reports whether k is one of the content source kinds
func (k Kind) IsSource() bool {
	return k == KindText || k == KindImage || k == KindVideo
}

func (k Kind) String() string { return string(k) }

// Parse decodes and validates manifest bytes
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Script == "" {
		m.Script = DefaultScript
	}
	m.Kind = Kind(strings.ToLower(strings.TrimSpace(string(m.Kind))))
}

// Validate checks that the manifest is usable
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, m.ID)
	}
	if m.Name == "" {
		return ErrMissingName
	}
	if m.Version == "" {
		return ErrMissingVersion
	}
	if _, err := ParseKind(string(m.Kind)); err != nil {
		return err
	}
	if m.Schema != nil && *m.Schema > MaxSchema {
		return fmt.Errorf("%w: %d > %d", ErrSchemaTooNew, *m.Schema, MaxSchema)
	}
	script := filepath.Clean(m.Script)
	if filepath.Ext(script) != ".js" || filepath.IsAbs(script) || strings.HasPrefix(script, "..") {
		return fmt.Errorf("%w: %s", ErrInvalidScript, m.Script)
	}
	return nil
}

// Load reads and validates the package in dir. It has no side effects.
// Any failure yields a nil package.
func Load(dir string) (*Package, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(filepath.Join(dir, filepath.Clean(m.Script)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptMissing, err)
	}

	return &Package{
		Manifest: *m,
		Dir:      dir,
		Source:   string(src),
	}, nil
}

// ID is a shortcut for p.Manifest.ID
func (p *Package) ID() string { return p.Manifest.ID }

// Kind is a shortcut for p.Manifest.Kind
func (p *Package) Kind() Kind { return p.Manifest.Kind }

// ScriptPath returns the absolute path of the entry script
func (p *Package) ScriptPath() string {
	return filepath.Join(p.Dir, filepath.Clean(p.Manifest.Script))
}
