// Package profiles loads named filter presets from YAML. A profile is
// a saved invocation: patterns plus the target and mode flags, so that
// recurring filters do not have to be retyped on the command line.
package profiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	Name       string   `yaml:"name"`
	Pattern    string   `yaml:"pattern"`
	Patterns   []string `yaml:"patterns"`
	Column     int      `yaml:"column"`
	ColumnName string   `yaml:"column_name"`
	Delimiter  string   `yaml:"delimiter"`

	IgnoreCase  bool `yaml:"ignore_case"`
	Multiline   bool `yaml:"multiline"`
	DotAll      bool `yaml:"dotall"`
	WholeRecord bool `yaml:"whole_record"`
	Highlight   bool `yaml:"highlight"`
	StripCR     bool `yaml:"strip_cr"`
}

// AllPatterns merges the singular and plural forms, singular first.
func (p Profile) AllPatterns() []string {
	if p.Pattern == "" {
		return p.Patterns
	}
	return append([]string{p.Pattern}, p.Patterns...)
}

type doc struct {
	Profiles []Profile `yaml:"profiles"`
}

// Parse decodes one YAML document of profiles and validates each entry.
func Parse(b []byte) ([]Profile, error) {
	var d doc
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	for i, p := range d.Profiles {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("profile %d: missing name", i)
		}
		if len(p.AllPatterns()) == 0 {
			return nil, fmt.Errorf("profile %s: no patterns", p.Name)
		}
		if p.Delimiter != "" && len(p.Delimiter) != 1 {
			return nil, fmt.Errorf("profile %s: delimiter must be one character", p.Name)
		}
		if p.Column < 0 {
			return nil, fmt.Errorf("profile %s: negative column", p.Name)
		}
		if p.Column > 0 && p.ColumnName != "" {
			return nil, fmt.Errorf("profile %s: column and column_name are exclusive", p.Name)
		}
	}
	return d.Profiles, nil
}

func isYAML(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".yml") || strings.HasSuffix(l, ".yaml")
}

func loadFile(path string) ([]Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil { return nil, err }
	ps, err := Parse(b)
	if err != nil { return nil, fmt.Errorf("%s: %w", path, err) }
	return ps, nil
}

func loadDir(root string) ([]Profile, error) {
	var out []Profile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil { return err }
		if d.IsDir() || !isYAML(p) { return nil }
		ps, err := loadFile(p)
		if err != nil { return err }
		out = append(out, ps...)
		return nil
	})
	return out, err
}

// Load reads profiles from a YAML file, or from every .yml/.yaml file
// under a directory tree.
func Load(path string) ([]Profile, error) {
	st, err := os.Stat(path)
	if err != nil { return nil, err }
	if st.IsDir() {
		return loadDir(path)
	}
	return loadFile(path)
}

var ErrNotFound = errors.New("profile not found")

// Find returns the first profile with the given name.
func Find(ps []Profile, name string) (Profile, error) {
	for _, p := range ps {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}
