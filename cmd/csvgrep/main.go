// Command csvgrep filters delimited text data the way grep filters
// lines, except that a logical record may span multiple physical lines
// through quoted embedded line breaks. The first input line is the
// header; it defines the expected field count and is always echoed.
//
// Exit status: 0 when at least one record was retained, 1 when none
// were, 2 on fatal setup or validation errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/michaelgchu/csvgrep/internal/pipeline"
	"github.com/michaelgchu/csvgrep/internal/profiles"
	"github.com/michaelgchu/csvgrep/internal/sink"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "csvgrep: "+format+"\n", args...)
	os.Exit(2)
}

func main() {
	var (
		pattern   = flag.String("e", "", "filter pattern (lets the pattern start with a dash)")
		column    = flag.Int("c", 0, "target column by 1-based number")
		colName   = flag.String("n", "", "target column by header name")
		delimArg  = flag.String("d", "", "field delimiter, one character (default comma)")
		ignCase   = flag.Bool("i", false, "case-insensitive matching")
		multiline = flag.Bool("m", false, "multiline mode: ^ and $ match at embedded line breaks")
		dotAll    = flag.Bool("s", false, "dot-matches-all mode")
		whole     = flag.Bool("w", false, "match against the whole record")
		highlight = flag.Bool("highlight", false, "wrap matched spans in ANSI color")
		stripCR   = flag.Bool("strip-cr", false, "remove stray CR bytes, preserving CRLF")
		verbose   = flag.Bool("v", false, "report drop notices and final tallies on stderr")
		debug     = flag.Bool("debug", false, "report internal decisions on stderr")
		profName  = flag.String("profile", "", "named profile to apply")
		profPath  = flag.String("profiles", getenv("CSVGREP_PROFILES", ""), "profile YAML file or directory")
		dsn       = flag.String("db", getenv("CSVGREP_DB", ""), "Postgres DSN; retained records are inserted there")
		table     = flag.String("table", "csvgrep", "table name for -db")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: csvgrep [flags] [pattern] [file]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	args := flag.Args()
	opts := pipeline.Options{
		IgnoreCase:  *ignCase,
		Multiline:   *multiline,
		DotAll:      *dotAll,
		WholeRecord: *whole,
		Column:      *column,
		ColumnName:  *colName,
		Highlight:   *highlight,
		StripCR:     *stripCR,
		Verbose:     *verbose,
		Debug:       *debug,
	}

	if *pattern != "" {
		opts.Patterns = []string{*pattern}
	} else if len(args) > 0 {
		opts.Patterns = []string{args[0]}
		args = args[1:]
	}

	if *column > 0 && *colName != "" {
		fatalf("-c and -n are mutually exclusive")
	}
	if *delimArg != "" {
		if len(*delimArg) != 1 {
			fatalf("delimiter must be exactly one character, got %q", *delimArg)
		}
		opts.Delimiter = (*delimArg)[0]
	}

	if *profName != "" {
		if *profPath == "" {
			fatalf("-profile requires -profiles or CSVGREP_PROFILES")
		}
		ps, err := profiles.Load(*profPath)
		if err != nil {
			fatalf("load profiles: %v", err)
		}
		p, err := profiles.Find(ps, *profName)
		if err != nil {
			fatalf("%v", err)
		}
		applyProfile(&opts, p, set)
	}

	if len(opts.Patterns) == 0 {
		fatalf("no pattern: pass one as an argument, with -e, or via a profile")
	}

	in := os.Stdin
	if len(args) > 1 {
		fatalf("at most one input file is supported")
	}
	if len(args) == 1 {
		st, err := os.Stat(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if st.IsDir() {
			fatalf("%s is a directory", args[0])
		}
		f, err := os.Open(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		in = f
	}

	if *dsn != "" {
		db, err := sink.Open(*dsn)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()
		opts.DB = db
		opts.Table = *table
	}

	tally, err := pipeline.Run(context.Background(), opts, in, os.Stdout, os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	if tally.Retained == 0 {
		os.Exit(1)
	}
}

// applyProfile fills every option the user did not set explicitly on
// the command line. CLI flags always win over the profile.
func applyProfile(opts *pipeline.Options, p profiles.Profile, set map[string]bool) {
	if len(opts.Patterns) == 0 {
		opts.Patterns = p.AllPatterns()
	}
	if !set["d"] && p.Delimiter != "" {
		opts.Delimiter = p.Delimiter[0]
	}
	if !set["c"] && !set["n"] && !set["w"] {
		opts.Column = p.Column
		opts.ColumnName = p.ColumnName
		opts.WholeRecord = p.WholeRecord
	}
	if !set["i"] {
		opts.IgnoreCase = p.IgnoreCase
	}
	if !set["m"] {
		opts.Multiline = p.Multiline
	}
	if !set["s"] {
		opts.DotAll = p.DotAll
	}
	if !set["highlight"] {
		opts.Highlight = p.Highlight
	}
	if !set["strip-cr"] {
		opts.StripCR = p.StripCR
	}
}
