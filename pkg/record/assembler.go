// Package record reconstructs logical records from a line-oriented
// stream. A record is one or more consecutive physical lines whose
// concatenation parses to exactly the header's field count; lines that
// can never resolve into such a record are dropped, tallied, and the
// stream continues.
package record

import (
	"log"
	"strings"

	"github.com/michaelgchu/csvgrep/pkg/delim"
)

// Assembler accumulates physical lines until they form a complete
// record, then hands the record to the emit callback. All drop
// decisions are non-fatal: they bump the Bad tally and reset the
// buffer. The assembler never emits a record whose field count differs
// from the expected count.
type Assembler struct {
	dialect delim.Dialect
	want    int
	tally   *Tally
	emit    func(rec string, line int)
	diag    *log.Logger // nil disables drop notices

	buf   strings.Builder
	start int // physical line where the buffer began
	line  int // last physical line fed
}

// New builds an assembler expecting want fields per record. headerLine
// is the physical line number of the header so that drop notices can
// point at the right input line. emit receives each complete record
// and the line it started on.
func New(d delim.Dialect, want, headerLine int, tally *Tally, emit func(rec string, line int)) *Assembler {
	return &Assembler{dialect: d, want: want, tally: tally, emit: emit, line: headerLine}
}

// SetDiag directs drop notices to l. A nil logger keeps drops silent;
// they are tallied either way.
func (a *Assembler) SetDiag(l *log.Logger) { a.diag = l }

// Pending reports whether a partial record is buffered.
func (a *Assembler) Pending() bool { return a.buf.Len() > 0 }

func (a *Assembler) dropf(line int, format string, args ...any) {
	a.tally.Bad++
	if a.diag != nil {
		a.diag.Printf("line %d: dropped: "+format, append([]any{line}, args...)...)
	}
}

func (a *Assembler) reset() {
	a.buf.Reset()
	a.start = 0
}

// Feed consumes one physical line. Decisions, in order: a line that is
// a complete record on its own flushes immediately (discarding any
// stale partial buffer as bad); a line matching the malformed-quote
// rule is dropped, along with any partial buffer, since no amount of
// further input can resynchronize it; anything else joins the buffer,
// which then either completes, overflows the field count and is
// dropped, or keeps accumulating.
func (a *Assembler) Feed(line string) {
	a.line++

	if a.dialect.IsRecord(line, a.want) {
		if a.Pending() {
			a.dropf(a.start, "too few fields in partial record superseded by complete line %d", a.line)
			a.reset()
		}
		a.emit(line, a.line)
		return
	}

	if a.dialect.HasMalformedQuote(line) {
		if a.Pending() {
			a.dropf(a.start, "partial record interrupted by malformed line %d", a.line)
			a.reset()
		}
		a.dropf(a.line, "unescaped quote inside quoted field")
		return
	}

	if !a.Pending() {
		a.start = a.line
	} else {
		a.buf.WriteByte('\n')
	}
	a.buf.WriteString(line)

	joined := a.buf.String()
	if a.dialect.IsRecord(joined, a.want) {
		a.emit(joined, a.start)
		a.reset()
		return
	}
	// Field count only grows as lines are appended, so overshooting the
	// expected count can never be repaired by more input.
	if n := a.dialect.CountFields(joined); n > a.want {
		a.dropf(a.start, "too many fields (%d > %d)", n, a.want)
		a.reset()
	}
}

// Close ends the stream. A partial buffer at end of input is a bad
// record, never a silently flushed one.
func (a *Assembler) Close() {
	if a.Pending() {
		a.dropf(a.start, "too few fields at end of input")
		a.reset()
	}
}
