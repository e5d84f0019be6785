package sink

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestColumnName(t *testing.T) {
	cases := []struct {
		in   string
		i    int
		want string
	}{
		{"Col1", 1, "col1"},
		{"First Name", 2, "first_name"},
		{`"Quoted"`, 3, "quoted"},
		{"", 4, "c4"},
		{"2nd", 5, "c2nd"},
		{"---", 6, "c6"},
	}
	for _, tc := range cases {
		if got := ColumnName(tc.in, tc.i); got != tc.want {
			t.Errorf("ColumnName(%q, %d) = %q, want %q", tc.in, tc.i, got, tc.want)
		}
	}
}

func TestNewCreatesTableAndWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS findings \(col1 TEXT, col2 TEXT, col3 TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO findings \(col1, col2, col3\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("A", `The "cake", is, a, lie`, "C").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx := context.Background()
	s, err := New(ctx, db, "findings", []string{"Col1", "Col2", "Col3"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Write(ctx, []string{"A", `The "cake", is, a, lie`, "C"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateHeaderNamesGetSuffixed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS t \(name TEXT, name_2 TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := New(context.Background(), db, "t", []string{"Name", "name"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := s.Columns()
	if got[0] != "name" || got[1] != "name_2" {
		t.Fatalf("Columns = %v", got)
	}
}

func TestRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := New(context.Background(), db, "drop table; --", []string{"a"}); err == nil {
		t.Fatal("expected invalid table name error")
	}
}

func TestWriteFieldCountMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS t \(a TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := New(context.Background(), db, "t", []string{"a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Write(context.Background(), []string{"x", "y"}); err == nil {
		t.Fatal("expected field count error")
	}
}
