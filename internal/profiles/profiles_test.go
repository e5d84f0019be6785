package profiles

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
profiles:
  - name: errors
    patterns: ["ERROR", "FATAL"]
    column_name: message
    ignore_case: true
  - name: tabbed
    pattern: 'e$'
    delimiter: "\t"
    column: 2
    highlight: true
`

func TestParse(t *testing.T) {
	ps, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("got %d profiles, want 2", len(ps))
	}

	errs, err := Find(ps, "errors")
	if err != nil {
		t.Fatal(err)
	}
	if got := errs.AllPatterns(); len(got) != 2 || got[0] != "ERROR" {
		t.Fatalf("errors patterns = %v", got)
	}
	if !errs.IgnoreCase || errs.ColumnName != "message" {
		t.Fatalf("errors profile = %+v", errs)
	}

	tabbed, err := Find(ps, "tabbed")
	if err != nil {
		t.Fatal(err)
	}
	if tabbed.Delimiter != "\t" || tabbed.Column != 2 || !tabbed.Highlight {
		t.Fatalf("tabbed profile = %+v", tabbed)
	}
	if got := tabbed.AllPatterns(); len(got) != 1 || got[0] != "e$" {
		t.Fatalf("tabbed patterns = %v", got)
	}
}

func TestParseRejectsBadProfiles(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"missing name", "profiles:\n  - pattern: x\n"},
		{"no patterns", "profiles:\n  - name: p\n"},
		{"long delimiter", "profiles:\n  - name: p\n    pattern: x\n    delimiter: '::'\n"},
		{"column and name", "profiles:\n  - name: p\n    pattern: x\n    column: 1\n    column_name: y\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.in)); err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
		})
	}
}

func TestLoadDirRecursive(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(path, body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(root, "a.yaml"), "profiles:\n  - name: one\n    pattern: x\n")
	write(filepath.Join(sub, "b.yml"), "profiles:\n  - name: two\n    pattern: y\n")
	write(filepath.Join(sub, "ignore.txt"), "not yaml")

	ps, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("got %d profiles, want 2", len(ps))
	}
	for _, name := range []string{"one", "two"} {
		if _, err := Find(ps, name); err != nil {
			t.Errorf("Find(%s): %v", name, err)
		}
	}
	if _, err := Find(ps, "absent"); err == nil {
		t.Error("Find(absent) should fail")
	}
}

func TestLoadSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	ps, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("got %d profiles, want 2", len(ps))
	}
}
