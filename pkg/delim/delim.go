// Package delim defines the field grammar for delimited records: a
// single-byte separator plus RFC-4180 style quoting, where a quoted
// field escapes literal quotes by doubling them. The grammar is
// implemented as a hand-rolled byte scanner rather than regexps so that
// field counting walks the input strictly left to right with no
// possibility of skipping characters.
package delim

import (
	"errors"
	"fmt"
	"strings"
)

const quote = '"'

var errBadDelim = errors.New("delimiter must be a single byte other than quote, CR or LF")

// Dialect carries the configured field separator. The zero value is not
// usable; construct with NewDialect.
type Dialect struct {
	Comma byte
}

// NewDialect validates c as a field separator. The quote character and
// line terminators are rejected since they are part of the grammar.
func NewDialect(c byte) (Dialect, error) {
	switch c {
	case quote, '\n', '\r', 0:
		return Dialect{}, fmt.Errorf("%w: %q", errBadDelim, string(c))
	}
	return Dialect{Comma: c}, nil
}

// scanQuoted parses a quoted field whose opening quote sits at pos.
// It returns the index just past the closing quote and whether the
// field actually closed before the end of s. Doubled quotes inside the
// field are consumed as escaped content.
func (d Dialect) scanQuoted(s string, pos int) (end int, closed bool) {
	i := pos + 1
	for i < len(s) {
		if s[i] != quote {
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i += 2
			continue
		}
		return i + 1, true
	}
	return pos, false
}

// scanField parses one field starting at pos and returns the index just
// past it. An opening quote with no closing quote yields a zero-width
// field: the walk stops there, so the count of an incomplete record
// only ever grows as more content is appended.
func (d Dialect) scanField(s string, pos int) int {
	if pos < len(s) && s[pos] == quote {
		if end, closed := d.scanQuoted(s, pos); closed {
			return end
		}
		return pos
	}
	i := pos
	for i < len(s) && s[i] != quote && s[i] != d.Comma {
		i++
	}
	return i
}

// Scan walks s as a sequence of fields separated by the dialect's comma
// and reports the field count together with whether the whole of s was
// consumed by the grammar. A trailing separator contributes one empty
// field, and an empty s counts as a single empty field.
func (d Dialect) Scan(s string) (n int, wellFormed bool) {
	pos := 0
	for {
		n++
		pos = d.scanField(s, pos)
		if pos < len(s) && s[pos] == d.Comma {
			pos++
			continue
		}
		break
	}
	return n, pos == len(s)
}

// CountFields reports how many fields the counting rule finds in s.
func (d Dialect) CountFields(s string) int {
	n, _ := d.Scan(s)
	return n
}

// WellFormed reports whether s fully matches
// "start, field, (separator, field)*, end".
func (d Dialect) WellFormed(s string) bool {
	_, ok := d.Scan(s)
	return ok
}

// IsRecord reports whether s is a complete record of exactly want
// fields.
func (d Dialect) IsRecord(s string, want int) bool {
	n, ok := d.Scan(s)
	return ok && n == want
}

// HasMalformedQuote reports whether s contains, at the start or right
// after a separator, a quoted span whose closing quote is not followed
// by a separator or end of string. Such an unescaped quote would
// desynchronize field parsing no matter how many lines were appended,
// so callers drop the line instead of accumulating it.
func (d Dialect) HasMalformedQuote(s string) bool {
	for p := 0; p < len(s); p++ {
		if p > 0 && s[p-1] != d.Comma {
			continue
		}
		if s[p] != quote {
			continue
		}
		if end, closed := d.scanQuoted(s, p); closed && end < len(s) && s[end] != d.Comma {
			return true
		}
	}
	return false
}

// FieldAt returns the byte bounds of the 1-based col-th field of s in
// its raw form, quotes included. ok is false when s has fewer fields.
// Bounds are returned rather than a copy so that callers can rebuild
// the record around the field verbatim.
func (d Dialect) FieldAt(s string, col int) (start, end int, ok bool) {
	pos := 0
	for i := 1; ; i++ {
		next := d.scanField(s, pos)
		if i == col {
			return pos, next, true
		}
		if next < len(s) && s[next] == d.Comma {
			pos = next + 1
			continue
		}
		return 0, 0, false
	}
}

// Unquote strips exactly one leading quote and, independently, one
// trailing quote from a raw field. Doubled quotes inside the content
// are left as-is: the filter is meant to see the raw quoted form minus
// its enclosure.
func Unquote(raw string) string {
	if len(raw) == 0 || raw[0] != quote {
		return raw
	}
	raw = raw[1:]
	if len(raw) > 0 && raw[len(raw)-1] == quote {
		raw = raw[:len(raw)-1]
	}
	return raw
}

// Quoted reports whether a raw field carries an enclosing quote.
func Quoted(raw string) bool {
	return len(raw) > 0 && raw[0] == quote
}

// Decode returns the display form of a raw field: enclosing quotes
// stripped and doubled quotes collapsed. Used where the value leaves
// the delimited world entirely, such as the database sink.
func Decode(raw string) string {
	if !Quoted(raw) {
		return raw
	}
	return strings.ReplaceAll(Unquote(raw), `""`, `"`)
}

// Fields splits a complete record into its raw fields. It assumes s
// already satisfied IsRecord; on a malformed tail the remaining text
// becomes the final field.
func (d Dialect) Fields(s string) []string {
	var out []string
	pos := 0
	for {
		next := d.scanField(s, pos)
		out = append(out, s[pos:next])
		if next < len(s) && s[next] == d.Comma {
			pos = next + 1
			continue
		}
		if next < len(s) {
			out[len(out)-1] = s[pos:]
		}
		return out
	}
}
