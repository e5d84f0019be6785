// Package filter applies the user's pattern to complete records. The
// pattern set is compiled once at startup into an immutable Filter;
// when every pattern is a plain ASCII literal an Aho-Corasick automaton
// is built in front of the regexp so that definite misses skip regexp
// evaluation entirely.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	ac "github.com/petar-dambovaliev/aho-corasick"

	"github.com/michaelgchu/csvgrep/pkg/delim"
	"github.com/michaelgchu/csvgrep/pkg/record"
)

// ANSI escapes wrapped around matched spans when highlighting.
const (
	hlOn  = "\x1b[1;31m"
	hlOff = "\x1b[0m"
)

var ErrNoPattern = errors.New("filter: at least one pattern is required")

// Target selects what the pattern is applied to: the whole record, or
// one field by 1-based column index.
type Target struct {
	Whole  bool
	Column int
}

// Config is the immutable filter configuration, fixed at startup.
type Config struct {
	// Patterns are combined as an alternation; a record passes when any
	// of them matches the target text.
	Patterns []string

	IgnoreCase bool
	Multiline  bool
	DotAll     bool

	Target    Target
	Highlight bool
	StripCR   bool
}

// Filter is the compiled form of a Config. It is not safe for
// concurrent use; the pipeline is single-threaded by design.
type Filter struct {
	cfg     Config
	dialect delim.Dialect
	re      *regexp.Regexp
	pre     *ac.AhoCorasick // nil unless every pattern is an ASCII literal
	tally   *record.Tally
}

// flagPrefix renders the mode flags as an inline regexp prefix.
func flagPrefix(cfg Config) string {
	var b strings.Builder
	if cfg.IgnoreCase {
		b.WriteByte('i')
	}
	if cfg.Multiline {
		b.WriteByte('m')
	}
	if cfg.DotAll {
		b.WriteByte('s')
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// literalOnly reports whether every pattern is free of regexp
// metacharacters and ASCII-only, the precondition for the automaton
// being an exact prefilter for the compiled regexp.
func literalOnly(patterns []string) bool {
	for _, p := range patterns {
		if regexp.QuoteMeta(p) != p || !isASCII(p) || p == "" {
			return false
		}
	}
	return true
}

// Compile builds the filter for one run. The column target is assumed
// to have been validated against the header already.
func Compile(cfg Config, d delim.Dialect, tally *record.Tally) (*Filter, error) {
	if len(cfg.Patterns) == 0 {
		return nil, ErrNoPattern
	}
	expr := cfg.Patterns[0]
	if len(cfg.Patterns) > 1 {
		parts := make([]string, len(cfg.Patterns))
		for i, p := range cfg.Patterns {
			parts[i] = "(?:" + p + ")"
		}
		expr = strings.Join(parts, "|")
	}
	re, err := regexp.Compile(flagPrefix(cfg) + expr)
	if err != nil {
		return nil, fmt.Errorf("filter: compile pattern: %w", err)
	}

	f := &Filter{cfg: cfg, dialect: d, re: re, tally: tally}
	if literalOnly(cfg.Patterns) {
		builder := ac.NewAhoCorasickBuilder(ac.Opts{
			AsciiCaseInsensitive: cfg.IgnoreCase,
			MatchKind:            ac.LeftMostLongestMatch,
		})
		built := builder.Build(cfg.Patterns)
		f.pre = &built
	}
	return f, nil
}

// Prefiltered reports whether the literal prefilter is active.
func (f *Filter) Prefiltered() bool { return f.pre != nil }

// Apply decides pass/drop for one complete record and returns the text
// to emit on a pass. The record keeps its exact input bytes except for
// optional highlighting and stray-CR stripping.
func (f *Filter) Apply(rec string) (out string, pass bool) {
	target := rec
	start, end := 0, len(rec)
	if !f.cfg.Target.Whole {
		s, e, ok := f.dialect.FieldAt(rec, f.cfg.Target.Column)
		if !ok {
			// Cannot happen for records the assembler emits; treat as a
			// non-match rather than panicking on adversarial callers.
			f.tally.Excluded++
			return "", false
		}
		start, end = s, e
		target = delim.Unquote(rec[s:e])
	}

	if f.pre != nil && len(f.pre.FindAll(target)) == 0 {
		f.tally.Excluded++
		return "", false
	}
	if !f.re.MatchString(target) {
		f.tally.Excluded++
		return "", false
	}
	f.tally.Retained++

	out = rec
	if f.cfg.Highlight {
		marked := f.re.ReplaceAllStringFunc(target, func(m string) string {
			return hlOn + m + hlOff
		})
		if f.cfg.Target.Whole {
			out = marked
		} else {
			field := marked
			if delim.Quoted(rec[start:end]) {
				field = `"` + marked + `"`
			}
			out = rec[:start] + field + rec[end:]
		}
	}
	if f.cfg.StripCR {
		var stripped int
		out, stripped = StripStrayCR(out)
		f.tally.CRStripped += stripped
	}
	return out, true
}

// StripStrayCR removes every CR byte not immediately followed by LF,
// preserving CRLF sequences, and reports how many were removed.
func StripStrayCR(s string) (string, int) {
	if !strings.ContainsRune(s, '\r') {
		return s, 0
	}
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' && (i+1 >= len(s) || s[i+1] != '\n') {
			n++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), n
}
