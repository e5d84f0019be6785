// Package pipeline wires the streaming pass: read the header, echo it,
// resolve the target column, assemble body lines into records, filter
// them, and write retained records in input order. Diagnostics go to a
// separate stream and never interleave with data output.
package pipeline

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/michaelgchu/csvgrep/internal/sink"
	"github.com/michaelgchu/csvgrep/pkg/delim"
	"github.com/michaelgchu/csvgrep/pkg/filter"
	"github.com/michaelgchu/csvgrep/pkg/record"
)

// Options is the immutable run configuration, built once in main.
type Options struct {
	Delimiter byte // 0 means comma

	Patterns   []string
	IgnoreCase bool
	Multiline  bool
	DotAll     bool

	WholeRecord bool
	Column      int    // 1-based; 0 when unset
	ColumnName  string // resolved against the header when set

	Highlight bool
	StripCR   bool

	Verbose bool
	Debug   bool

	// Optional Postgres sink for retained records.
	DB    *sql.DB
	Table string
}

var (
	ErrEmptyInput = errors.New("input is empty")
	ErrNoTarget   = errors.New("no target: use a column, a column name, or whole-record mode")
)

// readLine returns the next physical line without its LF. A CR before
// the LF is kept: stray CR handling is the filter's job, and the header
// must be echoed verbatim.
func readLine(r *bufio.Reader) (string, bool, error) {
	s, err := r.ReadString('\n')
	if err == io.EOF {
		if s == "" {
			return "", false, nil
		}
		return s, true, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSuffix(s, "\n"), true, nil
}

// resolveColumn maps a header name to its 1-based index, comparing each
// header field with enclosing quotes stripped.
func resolveColumn(d delim.Dialect, header, name string) (int, error) {
	for i, f := range d.Fields(header) {
		if strings.TrimSuffix(delim.Unquote(f), "\r") == name {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header", name)
}

// Run executes one streaming pass and returns the final tally. Errors
// are fatal setup or I/O failures; bad body records never produce an
// error, they are tallied and the stream continues.
func Run(ctx context.Context, opts Options, in io.Reader, out, diag io.Writer) (record.Tally, error) {
	var tally record.Tally

	comma := opts.Delimiter
	if comma == 0 {
		comma = ','
	}
	d, err := delim.NewDialect(comma)
	if err != nil {
		return tally, err
	}

	br := bufio.NewReader(in)
	header, ok, err := readLine(br)
	if err != nil {
		return tally, fmt.Errorf("read header: %w", err)
	}
	if !ok {
		return tally, ErrEmptyInput
	}

	numFields, wellFormed := d.Scan(header)
	if !wellFormed {
		return tally, fmt.Errorf("malformed header line: %q", header)
	}

	target := filter.Target{Whole: opts.WholeRecord}
	switch {
	case opts.WholeRecord:
	case opts.ColumnName != "":
		col, err := resolveColumn(d, header, opts.ColumnName)
		if err != nil {
			return tally, err
		}
		target.Column = col
	case opts.Column > 0:
		if opts.Column > numFields {
			return tally, fmt.Errorf("column %d out of range: header has %d fields", opts.Column, numFields)
		}
		target.Column = opts.Column
	default:
		return tally, ErrNoTarget
	}

	flt, err := filter.Compile(filter.Config{
		Patterns:   opts.Patterns,
		IgnoreCase: opts.IgnoreCase,
		Multiline:  opts.Multiline,
		DotAll:     opts.DotAll,
		Target:     target,
		Highlight:  opts.Highlight,
		StripCR:    opts.StripCR,
	}, d, &tally)
	if err != nil {
		return tally, err
	}

	var lg *log.Logger
	if opts.Verbose || opts.Debug {
		lg = log.New(diag, "", 0)
	}
	if opts.Debug && lg != nil {
		lg.Printf("header: %d fields; target column %d (whole=%v); prefilter=%v",
			numFields, target.Column, target.Whole, flt.Prefiltered())
	}

	var snk *sink.Sink
	if opts.DB != nil {
		decoded := make([]string, 0, numFields)
		for _, f := range d.Fields(header) {
			decoded = append(decoded, delim.Decode(f))
		}
		snk, err = sink.New(ctx, opts.DB, opts.Table, decoded)
		if err != nil {
			return tally, err
		}
	}

	w := bufio.NewWriter(out)
	// The header is echoed verbatim before any filtering runs.
	if _, err := w.WriteString(header + "\n"); err != nil {
		return tally, err
	}

	var runErr error
	emit := func(rec string, line int) {
		if runErr != nil {
			return
		}
		text, pass := flt.Apply(rec)
		if !pass {
			if opts.Debug && lg != nil {
				lg.Printf("line %d: excluded", line)
			}
			return
		}
		if _, err := w.WriteString(text + "\n"); err != nil {
			runErr = err
			return
		}
		if snk != nil {
			fields := d.Fields(rec)
			decoded := make([]string, len(fields))
			for i, f := range fields {
				decoded[i] = delim.Decode(f)
			}
			if err := snk.Write(ctx, decoded); err != nil {
				runErr = err
			}
		}
	}

	asm := record.New(d, numFields, 1, &tally, emit)
	asm.SetDiag(lg)

	for runErr == nil {
		line, ok, err := readLine(br)
		if err != nil {
			return tally, fmt.Errorf("read input: %w", err)
		}
		if !ok {
			break
		}
		asm.Feed(line)
	}
	asm.Close()
	if runErr != nil {
		return tally, runErr
	}
	if err := w.Flush(); err != nil {
		return tally, err
	}

	if opts.Verbose && lg != nil {
		lg.Printf("done: %s (attempted %d)", tally, tally.Attempted())
	}
	return tally, nil
}
