// Package sink persists retained records into a Postgres table whose
// text columns are derived from the input header. It is optional: the
// pipeline works purely on streams unless a DSN is configured.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Sink writes decoded record fields as rows of one table. One Sink
// serves one run; the column set is fixed by the header at creation.
type Sink struct {
	db     *sql.DB
	table  string
	cols   []string
	insert string
}

// ColumnName sanitizes a header field into a SQL identifier: lowered,
// non-alphanumerics collapsed to underscores, and a c prefix when the
// result would not start with a letter. i is the 1-based column index
// used as a fallback for empty names.
func ColumnName(field string, i int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(field) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return fmt.Sprintf("c%d", i)
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "c" + name
	}
	return name
}

// New creates the target table if needed and prepares the insert. The
// header is the decoded first line of the input; duplicates among the
// derived column names get a positional suffix.
func New(ctx context.Context, db *sql.DB, table string, header []string) (*Sink, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("sink: invalid table name %q", table)
	}
	seen := make(map[string]bool, len(header))
	cols := make([]string, len(header))
	for i, h := range header {
		name := ColumnName(h, i+1)
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i+1)
		}
		seen[name] = true
		cols[i] = name
	}

	defs := make([]string, len(cols))
	args := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c + " TEXT"
		args[i] = fmt.Sprintf("$%d", i+1)
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("sink: create table %s: %w", table, err)
	}

	return &Sink{
		db:    db,
		table: table,
		cols:  cols,
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(args, ", ")),
	}, nil
}

// Columns returns the derived column names, in header order.
func (s *Sink) Columns() []string { return s.cols }

// Write inserts one retained record. fields must be the decoded display
// forms, one per header column.
func (s *Sink) Write(ctx context.Context, fields []string) error {
	if len(fields) != len(s.cols) {
		return fmt.Errorf("sink: got %d fields, table %s has %d columns", len(fields), s.table, len(s.cols))
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	if _, err := s.db.ExecContext(ctx, s.insert, args...); err != nil {
		return fmt.Errorf("sink: insert into %s: %w", s.table, err)
	}
	return nil
}
